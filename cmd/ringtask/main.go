package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/golang/glog"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robotalks/ringtask/pkg/bbuf"
	"github.com/robotalks/ringtask/pkg/comm/mqtt"
	"github.com/robotalks/ringtask/pkg/comm/websocket"
	"github.com/robotalks/ringtask/pkg/dispatch"
	"github.com/robotalks/ringtask/pkg/env"
	fx "github.com/robotalks/ringtask/pkg/framework"
	"github.com/robotalks/ringtask/pkg/stackmon"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func metricsServer(addr string, reg *prometheus.Registry) fx.Runnable {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux}
	return fx.NamedRun("metrics", fx.RunFunc(func(ctx context.Context) error {
		glog.Infof("metrics listening on %s", addr)
		return fx.RunWithContextCancel(ctx, func() { srv.Close() }, srv.ListenAndServe)
	}))
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := env.NewConfig().MustValidate()
	runner := fx.NewRunner().HandleSignals()

	buf := conf.NewBuffer()
	reg := prometheus.NewRegistry()
	if conf.MetricsAddr != "" {
		reg.MustRegister(collectors.NewGoCollector())
		m, err := bbuf.NewMetrics(reg, buf.Name())
		if err != nil {
			log.Fatalln(err)
		}
		buf.WithMetrics(m)
	}

	dev, readTimeout, err := conf.OpenDevice()
	if err != nil {
		log.Fatalln(err)
	}
	defer dev.Close()
	d := dispatch.New(dev, buf)
	d.ReadTimeout = readTimeout
	d.PollInterval = conf.PollInterval
	var handlers dispatch.ResultHandlers

	if conf.MQTTBrokerURL != "" {
		bridge, err := mqtt.NewBridge(conf.MQTTBrokerURL, conf.NodeID,
			mqtt.NodeMeta{Buffer: buf.Name(), Capacity: buf.Cap()}, d)
		if err != nil {
			log.Fatalf("create MQTT bridge error: %v", err)
		}
		handlers = append(handlers, bridge)
		runner.Go(bridge)
	}
	if conf.WebSocketAddr != "" {
		ws := websocket.NewServer(conf.WebSocketAddr, d)
		handlers = append(handlers, ws)
		runner.Go(ws)
	}
	if len(handlers) > 0 {
		d.Handler = handlers
	}

	if conf.StackDemo {
		tasks := conf.Stack.Tasks()
		monitor := stackmon.NewMonitor(tasks...)
		monitor.Interval = conf.MonitorInterval
		if conf.MetricsAddr != "" {
			if err := monitor.RegisterMetrics(reg); err != nil {
				log.Fatalln(err)
			}
		}
		for _, task := range tasks {
			runner.Go(task)
		}
		runner.Go(monitor)
	}

	if conf.MetricsAddr != "" {
		runner.Go(metricsServer(conf.MetricsAddr, reg))
	}

	if conf.Device == "" && isatty.IsTerminal(os.Stdin.Fd()) {
		fmt.Fprintf(os.Stderr, "%s: enter %c to produce, %c to consume\n",
			conf.NodeID, dispatch.SymbolProduce, dispatch.SymbolConsume)
	}
	runner.Go(d)

	if err := runner.Wait(); err != nil {
		glog.Errorf("%v", err)
		glog.Flush()
		os.Exit(1)
	}
}
