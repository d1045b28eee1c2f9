package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brutella/hc"
	"github.com/brutella/hc/accessory"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/jkaflik/blinds2hap/internal/api"
	"github.com/jkaflik/blinds2hap/internal/blinds"
	"github.com/jkaflik/blinds2hap/internal/blinds/driver/httpcmd"
	"github.com/jkaflik/blinds2hap/internal/metrics"
	"github.com/jkaflik/blinds2hap/internal/mqtt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableColors: false,
		FullTimestamp: true,
	})

	configPath := flag.String("config", "config.yaml", "config.yaml file path")
	flag.Parse()

	if err := configLoader.Load(); err != nil {
		logrus.Fatal(err)
	}
	if err := loadConfigFromYamlFile(*configPath); err != nil {
		logrus.Fatal(err)
	}

	level, err := logrus.ParseLevel(Cfg.LogLevel)
	if err != nil {
		logrus.Fatal(err)
	}
	logrus.SetLevel(level)

	ctx, cancel := context.WithCancel(context.Background())

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)
	devices, err := blindsFromConfig(collector)
	if err != nil {
		logrus.Fatal(err)
	}
	if len(devices) == 0 {
		logrus.Fatal("no blinds configured")
	}
	observe(collector, devices)

	for _, d := range devices {
		go d.Run(ctx)
	}

	if Cfg.MQTT.Enabled {
		runMQTT(ctx, devices)
	}

	if Cfg.HomeKit.Enabled {
		runHomeKit(ctx, devices)
	}

	if Cfg.API.Enabled {
		runAPI(ctx, devices)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		oscall := <-c
		logrus.Infof("system call: %+v", oscall)
		cancel()
	}()

	<-ctx.Done()

	cleanupTime := time.Second
	logrus.Infof("cleanups for %s...", cleanupTime.String())
	time.Sleep(cleanupTime)
}

func runMQTT(ctx context.Context, devices []*httpcmd.Blinds) {
	var bridges []*mqtt.Bridge
	cfg := pahoOptsFromConfig()
	cfg.OnConnect = func(m paho.Client) {
		logrus.Info("MQTT broker connected")
		subscribe(ctx, m, bridges)
	}
	cfg.OnConnectionLost = func(_ paho.Client, err error) {
		logrus.Errorf("MQTT broker connection lost: %s", err.Error())
	}

	m := paho.NewClient(cfg)
	if token := m.Connect(); token.Wait() && token.Error() != nil {
		logrus.Fatal(token.Error())
	}

	bridges, err := bridgesFromConfig(m, devices)
	if err != nil {
		logrus.Fatal(err)
	}
	subscribe(ctx, m, bridges)

	go func() {
		<-ctx.Done()
		m.Disconnect(250)
	}()
}

func subscribe(ctx context.Context, m paho.Client, bridges []*mqtt.Bridge) {
	for _, bridge := range bridges {
		if Cfg.HASS.Enabled {
			entity := mqtt.NewHACoverFromMQTTBridge(bridge)
			if err := mqtt.PublishHAAutoDiscovery(m, Cfg.HASS.TopicPrefix, entity); err != nil {
				logrus.Fatal(err)
			}
		}

		if err := bridge.Subscribe(ctx); err != nil {
			logrus.Error(err)
		}
		bridge.Publish()
	}
}

func runHomeKit(ctx context.Context, devices []*httpcmd.Blinds) {
	bridge := accessory.NewBridge(accessory.Info{Name: "blinds2hap", Manufacturer: "blinds2hap"})

	t, err := hc.NewIPTransport(hc.Config{
		Pin:         Cfg.HomeKit.Pin,
		StoragePath: Cfg.HomeKit.StoragePath,
	}, bridge.Accessory, accessoriesFromConfig(ctx, devices)...)
	if err != nil {
		logrus.Fatal(err)
	}

	go t.Start()
	logrus.Infof("HomeKit bridge started with %d accessories", len(devices))

	go func() {
		<-ctx.Done()
		<-t.Stop()
		logrus.Info("HomeKit bridge stopped")
	}()
}

func runAPI(ctx context.Context, devices []*httpcmd.Blinds) {
	bs := make([]blinds.Blinds, 0, len(devices))
	for _, d := range devices {
		bs = append(bs, d)
	}

	srv := api.NewServer(Cfg.API.Addr, api.NewHandler(ctx, prometheus.DefaultGatherer, bs...).InitRoutes())
	go func() {
		logrus.Infof("API listening on %s", Cfg.API.Addr)
		if err := srv.Run(); err != nil {
			logrus.Fatal(err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logrus.Errorf("API shutdown failed: %s", err)
		}
	}()
}
