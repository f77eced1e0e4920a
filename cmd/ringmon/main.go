package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/robotalks/ringtask/pkg/comm/mqtt"
	"github.com/robotalks/ringtask/pkg/events"
)

//go-build: CGO_ENABLED=0

var (
	mqttURL = "mqtt://localhost:1883/ringtask/"
	symbols bool
)

func init() {
	if val := os.Getenv("RINGTASK_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.BoolVar(&symbols, "symbols", symbols, "Also print received symbols.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}

	q.Sub("#", mqtt.Handler(func(topic string, payload []byte) {
		switch {
		case strings.HasSuffix(topic, "/"+mqtt.TopicMeta):
			log.Printf("%s: %s", topic, string(payload))
		case strings.HasSuffix(topic, "/"+mqtt.TopicSymbols):
			if symbols {
				log.Printf("%s: %q", topic, string(payload))
			}
		case strings.HasSuffix(topic, "/"+mqtt.TopicEvents):
			ev, err := events.Decode(payload)
			if err != nil {
				log.Printf("%s: bad event: %v", topic, err)
				return
			}
			log.Printf("%s: %s", topic, ev)
		}
	}))
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}
	<-(chan struct{})(nil)
}
