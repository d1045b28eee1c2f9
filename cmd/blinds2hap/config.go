package main

import (
	"context"
	"os"
	"time"

	"github.com/brutella/hc/accessory"
	"github.com/cristalhq/aconfig"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/jkaflik/blinds2hap/internal/blinds/driver/httpcmd"
	"github.com/jkaflik/blinds2hap/internal/homekit"
	"github.com/jkaflik/blinds2hap/internal/metrics"
	"github.com/jkaflik/blinds2hap/internal/mqtt"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

type cfgBlindsMQTTBridge struct {
	Metadata map[string]interface{} `yaml:"metadata"`
}

type cfgBlinds struct {
	Name string `yaml:"name"`

	UpURL      string `yaml:"up_url"`
	DownURL    string `yaml:"down_url"`
	StopURL    string `yaml:"stop_url"`
	StatusURL  string `yaml:"status_url"`
	HTTPMethod string `yaml:"http_method"`

	// milliseconds
	MotionTime      int `yaml:"motion_time"`
	PollingInterval int `yaml:"pollingInterval"`

	TriggerStopAtBoundaries bool `yaml:"trigger_stop_at_boundaries"`

	Manufacturer string `yaml:"manufacturer"`
	Model        string `yaml:"model"`

	MQTTBridge cfgBlindsMQTTBridge `yaml:"mqtt_bridge"`
}

type cfgDrivers struct {
	HTTP struct {
		Pool    int           `yaml:"pool" default:"0"`
		Timeout time.Duration `yaml:"timeout" default:"3s"`
	} `yaml:"http"`
}

type cfgMQTT struct {
	Enabled  bool   `yaml:"enabled" default:"false" env:"ENABLED"`
	ClientID string `yaml:"client_id" default:"blinds2hap" env:"CLIENT_ID"`
	Broker   string `yaml:"broker" default:"127.0.0.1:1883" env:"BROKER"`
	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`
}

type cfgHASS struct {
	Enabled     bool   `yaml:"enabled" default:"true" env:"ENABLED"`
	TopicPrefix string `yaml:"topic_prefix" default:"homeassistant" env:"TOPIC_PREFIX"`
}

type cfgHomeKit struct {
	Enabled     bool   `yaml:"enabled" default:"true" env:"ENABLED"`
	Pin         string `yaml:"pin" default:"00102003" env:"PIN"`
	StoragePath string `yaml:"storage_path" default:"homekit" env:"STORAGE_PATH"`
}

type cfgAPI struct {
	Enabled bool   `yaml:"enabled" default:"false" env:"ENABLED"`
	Addr    string `yaml:"addr" default:":8080" env:"ADDR"`
}

var Cfg struct {
	LogLevel string `yaml:"log_level" default:"info" env:"LOG_LEVEL"`

	MQTT    cfgMQTT    `yaml:"mqtt" env:"MQTT"`
	HASS    cfgHASS    `yaml:"hass" env:"HASS"`
	HomeKit cfgHomeKit `yaml:"homekit" env:"HOMEKIT"`
	API     cfgAPI     `yaml:"api" env:"API"`

	Blinds []cfgBlinds `yaml:"blinds"`

	Drivers cfgDrivers `yaml:"drivers"`
}

var configLoader = aconfig.LoaderFor(&Cfg, aconfig.Config{
	EnvPrefix: "B2H",
	SkipFlags: true,
	SkipFiles: true,
})

func loadConfigFromYamlFile(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return errors.Wrapf(err, "open config %s", filename)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&Cfg); err != nil {
		return errors.Wrapf(err, "decode config %s", filename)
	}

	return nil
}

func (c cfgBlinds) options() (httpcmd.Options, error) {
	if c.Name == "" {
		return httpcmd.Options{}, errors.New("blinds name is required")
	}
	if c.UpURL == "" || c.DownURL == "" {
		return httpcmd.Options{}, errors.Errorf("%s: up_url and down_url are required", c.Name)
	}
	if c.MotionTime < 0 || c.PollingInterval < 0 {
		return httpcmd.Options{}, errors.Errorf("%s: motion_time and pollingInterval must not be negative", c.Name)
	}

	return httpcmd.Options{
		Name:             c.Name,
		UpURL:            c.UpURL,
		DownURL:          c.DownURL,
		StopURL:          c.StopURL,
		StatusURL:        c.StatusURL,
		Method:           c.HTTPMethod,
		MotionTime:       time.Duration(c.MotionTime) * time.Millisecond,
		StopAtBoundaries: c.TriggerStopAtBoundaries,
		PollingInterval:  time.Duration(c.PollingInterval) * time.Millisecond,
	}, nil
}

func pahoOptsFromConfig() *paho.ClientOptions {
	return paho.NewClientOptions().
		SetClientID(Cfg.MQTT.ClientID).
		AddBroker(Cfg.MQTT.Broker).
		SetUsername(Cfg.MQTT.Username).
		SetPassword(Cfg.MQTT.Password).
		SetConnectTimeout(time.Second).
		SetPingTimeout(time.Second).
		SetWriteTimeout(time.Second).
		SetAutoReconnect(true)
}

func blindsFromConfig(rec httpcmd.Recorder) ([]*httpcmd.Blinds, error) {
	var commander httpcmd.Commander = httpcmd.NewClient(Cfg.Drivers.HTTP.Timeout)
	if Cfg.Drivers.HTTP.Pool > 0 {
		commander = httpcmd.NewPoolProxy(commander, make(chan struct{}, Cfg.Drivers.HTTP.Pool))
	}

	seen := map[string]bool{}
	var devices []*httpcmd.Blinds
	for _, cfg := range Cfg.Blinds {
		opts, err := cfg.options()
		if err != nil {
			return nil, err
		}
		if seen[opts.Name] {
			return nil, errors.Errorf("%s: duplicate blinds name", opts.Name)
		}
		seen[opts.Name] = true

		opts.Recorder = rec
		devices = append(devices, httpcmd.NewBlinds(opts, commander))
	}

	return devices, nil
}

func bridgesFromConfig(client paho.Client, devices []*httpcmd.Blinds) (bridges []*mqtt.Bridge, err error) {
	for i, d := range devices {
		bridge := mqtt.NewBridge(client, d)
		if meta := Cfg.Blinds[i].MQTTBridge.Metadata; meta != nil {
			if err := bridge.SetMetadata(meta); err != nil {
				return nil, err
			}
		}
		bridges = append(bridges, bridge)
	}

	return bridges, nil
}

func accessoriesFromConfig(ctx context.Context, devices []*httpcmd.Blinds) []*accessory.Accessory {
	var accs []*accessory.Accessory
	for i, d := range devices {
		cfg := Cfg.Blinds[i]
		acc := homekit.NewAccessory(ctx, d, accessory.Info{
			Name:         cfg.Name,
			Manufacturer: cfg.Manufacturer,
			Model:        cfg.Model,
			SerialNumber: cfg.Name,
		})
		accs = append(accs, acc.Accessory)
	}

	return accs
}

func observe(collector *metrics.Collector, devices []*httpcmd.Blinds) {
	for _, d := range devices {
		collector.Observe(d)
	}
	logrus.Debugf("metrics: observing %d blinds", len(devices))
}
