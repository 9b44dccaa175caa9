// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// MqttConfig describes the broker connection.
type MqttConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Prefix   string `yaml:"prefix"`
}

// mq is a handle onto a MQTT broker connection. It isolates the
// gateway code from the crazyness of the paho mqtt client.
type mq struct {
	conn mqtt.Client
}

// newMQ connects to a broker and returns a new mq object. The
// connection is persistent, i.e. re-establishes itself if there is a
// disconnect.
func newMQ(conf MqttConfig, debug LogPrintf) (*mq, error) {
	// A random suffix keeps multiple gateways on one host from
	// kicking each other off the broker.
	id := "bladerf-" + uuid.NewString()[:8]
	if debug != nil {
		debug("Configuring MQTT with client id %s: %+v", id, conf)
	}
	mqtt.ERROR = log.New(os.Stderr, "", 0)
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", conf.Host, conf.Port))
	opts.ClientID = id
	opts.Username = conf.User
	opts.Password = conf.Password
	opts.AutoReconnect = true

	conn := mqtt.NewClient(opts)
	if token := conn.Connect(); !token.WaitTimeout(10 * time.Second) {
		return nil, token.Error()
	}
	log.Printf("MQTT connected")
	return &mq{conn: conn}, nil
}

// Publish marshals payload to JSON and publishes it.
func (mq *mq) Publish(topic string, payload interface{}) {
	jsonPayload, _ := json.Marshal(payload)
	mq.conn.Publish(topic, 1, false, jsonPayload)
}

// Subscribe subscribes to a topic (wildcards allowed) and calls handler
// with each message's full topic and raw payload.
func (mq *mq) Subscribe(topic string, handler func(topic string, payload []byte)) error {
	h := func(c mqtt.Client, m mqtt.Message) {
		handler(m.Topic(), m.Payload())
	}
	if token := mq.conn.Subscribe(topic, 1, h); !token.WaitTimeout(2 * time.Second) {
		return token.Error()
	}
	return nil
}
