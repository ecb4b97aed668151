// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command colingest subscribes to a message-bus subject and forwards
// mapped fields from each message to the /index HTTP endpoint. It replaces
// the original Kafka-consuming ingest client with a NATS subscriber,
// the closest message-bus client available in the example pack.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

type mapping struct {
	KafkaField   string `json:"kafka_field"`
	DatabaseField string `json:"database_field"`
}

func loadMappingFile(path string) ([]mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping file: %w", err)
	}
	var mappings []mapping
	if err := json.Unmarshal(data, &mappings); err != nil {
		return nil, fmt.Errorf("%s does not have the correct format: %w", path, err)
	}
	return mappings, nil
}

func insertRecord(indexURL string, fields []string, values []interface{}) error {
	payload := map[string]interface{}{"fields": fields, "values": values}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	resp, err := http.Post(indexURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post to %s: %w", indexURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("index request rejected: status %d", resp.StatusCode)
	}
	return nil
}

// mapValue extracts every mapped field from a decoded bus payload. A
// message is only forwarded once every configured mapping found a value,
// matching the original's all-or-nothing validation.
func mapValue(payload map[string]interface{}, mappings []mapping) (fields []string, values []interface{}, ok bool) {
	for _, m := range mappings {
		v, present := payload[m.KafkaField]
		if !present {
			continue
		}
		fields = append(fields, m.DatabaseField)
		values = append(values, v)
	}
	return fields, values, len(fields) == len(mappings) && len(values) == len(mappings)
}

func main() {
	var (
		busURL         string
		subject        string
		mappingPath    string
		indexURL       string
	)

	cmd := &cobra.Command{
		Use:   "colingest",
		Short: "Forward messages from a bus subject into the colbase /index endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			mappings, err := loadMappingFile(mappingPath)
			if err != nil {
				return err
			}

			conn, err := nats.Connect(busURL)
			if err != nil {
				return fmt.Errorf("connect to %s: %w", busURL, err)
			}
			defer conn.Close()

			sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
				var payload map[string]interface{}
				dec := json.NewDecoder(bytes.NewReader(msg.Data))
				dec.UseNumber()
				if err := dec.Decode(&payload); err != nil {
					fmt.Fprintf(os.Stderr, "ERR: failed to deserialize message: %s\n", err)
					return
				}
				fields, values, ok := mapValue(payload, mappings)
				if !ok {
					return
				}
				if err := insertRecord(indexURL, fields, values); err != nil {
					fmt.Fprintf(os.Stderr, "Failed to insert data: %s\n", err)
				}
			})
			if err != nil {
				return fmt.Errorf("subscribe to %s: %w", subject, err)
			}
			defer sub.Unsubscribe()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt)
			<-stop
			return nil
		},
	}

	cmd.Flags().StringVarP(&busURL, "bus-url", "b", nats.DefaultURL, "message bus URL")
	cmd.Flags().StringVarP(&subject, "subject", "t", "", "message bus subject to consume")
	cmd.Flags().StringVarP(&mappingPath, "mapping-file", "m", "", "path to the field mapping file")
	cmd.Flags().StringVarP(&indexURL, "index-url", "i", "http://localhost:3030/index", "colbased /index endpoint")
	cmd.MarkFlagRequired("subject")
	cmd.MarkFlagRequired("mapping-file")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
