// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

// bladerf-mqtt bridges a bladeRF 2.0 micro control plane onto MQTT.
// Tuning, gain and band state are exposed under a topic prefix: set
// requests arrive on <prefix>/set/..., and the gateway publishes the
// resulting device state and power telemetry on <prefix>/status.
//
// The radio runs against the in-memory simulator from the sim package,
// which exercises the full control path (band selection, RFFE switch
// programming, correction registers) without hardware attached.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	bladerf "github.com/butshuti/bladeRF"
	"github.com/butshuti/bladeRF/sim"
)

type LogPrintf func(format string, v ...interface{})

// RadioConfig is the initial tuning for one direction.
type RadioConfig struct {
	Frequency  uint64 `yaml:"frequency"`
	SampleRate uint32 `yaml:"sample_rate"`
	Bandwidth  uint32 `yaml:"bandwidth"`
	Gain       int    `yaml:"gain"`
}

// Config is the gateway configuration file.
type Config struct {
	Mqtt MqttConfig  `yaml:"mqtt"`
	RX   RadioConfig `yaml:"rx"`
	TX   RadioConfig `yaml:"tx"`
}

// status is the JSON payload published on <prefix>/status.
type status struct {
	State       string  `json:"state"`
	Serial      string  `json:"serial"`
	RXFrequency uint64  `json:"rx_frequency"`
	TXFrequency uint64  `json:"tx_frequency"`
	RXGain      int     `json:"rx_gain"`
	TXGain      int     `json:"tx_gain"`
	BusVoltage  float64 `json:"bus_voltage"`
	Power       float64 `json:"power"`
}

// apply pushes one direction's configuration into the device.
func apply(dev *bladerf.Device, ch bladerf.Channel, conf RadioConfig) error {
	if conf.Frequency != 0 {
		if err := dev.SetFrequency(ch, conf.Frequency); err != nil {
			return err
		}
	}
	if conf.SampleRate != 0 {
		if _, err := dev.SetSampleRate(ch, conf.SampleRate); err != nil {
			return err
		}
	}
	if conf.Bandwidth != 0 {
		if _, err := dev.SetBandwidth(ch, conf.Bandwidth); err != nil {
			return err
		}
	}
	if conf.Gain != 0 {
		if err := dev.SetGain(ch, conf.Gain); err != nil {
			return err
		}
	}
	return nil
}

// publishStatus collects device state and pushes it to the broker.
func publishStatus(mq *mq, prefix string, dev *bladerf.Device, pm *sim.Power) {
	var st status
	st.State = dev.State().String()
	st.Serial = dev.Serial()
	st.RXFrequency, _ = dev.Frequency(bladerf.ChannelRX1)
	st.TXFrequency, _ = dev.Frequency(bladerf.ChannelTX1)
	st.RXGain, _ = dev.Gain(bladerf.ChannelRX1)
	st.TXGain, _ = dev.Gain(bladerf.ChannelTX1)
	st.BusVoltage, _ = pm.BusVoltage()
	st.Power, _ = pm.Power()
	mq.Publish(prefix+"/status", st)
}

func main() {
	confFile := flag.String("config", "bladerf-mqtt.yml", "configuration file")
	debug := flag.Bool("debug", false, "enable debug output")
	interval := flag.Duration("interval", 10*time.Second, "status publish interval")
	flag.Parse()

	var logger LogPrintf
	if *debug {
		logger = log.Printf
	}

	raw, err := os.ReadFile(*confFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot read config: %s\n", err)
		os.Exit(1)
	}
	var conf Config
	if err := yaml.Unmarshal(raw, &conf); err != nil {
		fmt.Fprintf(os.Stderr, "Cannot parse config: %s\n", err)
		os.Exit(1)
	}
	if conf.Mqtt.Port == 0 {
		conf.Mqtt.Port = 1883
	}
	if conf.Mqtt.Prefix == "" {
		conf.Mqtt.Prefix = "bladerf"
	}

	log.Printf("Opening radio")
	chip := sim.NewChip()
	backend := sim.NewBackend(chip)
	pm := &sim.Power{}
	dev, err := bladerf.Open(backend, chip, bladerf.Opts{
		Logger:       bladerf.LogPrintf(logger),
		PowerMonitor: pm,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot open device: %s\n", err)
		os.Exit(2)
	}
	defer dev.Close()

	if err := apply(dev, bladerf.ChannelRX1, conf.RX); err == nil {
		err = apply(dev, bladerf.ChannelTX1, conf.TX)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot configure device: %s\n", err)
		os.Exit(2)
	}
	log.Printf("Radio ready, serial %s", dev.Serial())

	mq, err := newMQ(conf.Mqtt, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to MQTT broker: %s\n", err)
		os.Exit(2)
	}

	prefix := conf.Mqtt.Prefix
	chanFor := func(topic string) bladerf.Channel {
		if topic == "tx" {
			return bladerf.ChannelTX1
		}
		return bladerf.ChannelRX1
	}
	err = mq.Subscribe(prefix+"/set/frequency/+", func(topic string, payload []byte) {
		freq, err := strconv.ParseUint(string(payload), 10, 64)
		if err != nil {
			log.Printf("Bad frequency %q: %s", payload, err)
			return
		}
		ch := chanFor(topic[len(topic)-2:])
		if err := dev.SetFrequency(ch, freq); err != nil {
			log.Printf("SetFrequency: %s", err)
			return
		}
		publishStatus(mq, prefix, dev, pm)
	})
	if err == nil {
		err = mq.Subscribe(prefix+"/set/gain/+", func(topic string, payload []byte) {
			gain, err := strconv.Atoi(string(payload))
			if err != nil {
				log.Printf("Bad gain %q: %s", payload, err)
				return
			}
			ch := chanFor(topic[len(topic)-2:])
			if err := dev.SetGain(ch, gain); err != nil {
				log.Printf("SetGain: %s", err)
				return
			}
			publishStatus(mq, prefix, dev, pm)
		})
	}
	if err == nil {
		err = mq.Subscribe(prefix+"/set/enable/+", func(topic string, payload []byte) {
			dir := bladerf.RXDir
			if topic[len(topic)-2:] == "tx" {
				dir = bladerf.TXDir
			}
			if err := dev.EnableModule(dir, string(payload) == "1"); err != nil {
				log.Printf("EnableModule: %s", err)
				return
			}
			publishStatus(mq, prefix, dev, pm)
		})
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot subscribe: %s\n", err)
		os.Exit(2)
	}

	log.Printf("Gateway is ready")
	for range time.Tick(*interval) {
		publishStatus(mq, prefix, dev, pm)
	}
}
