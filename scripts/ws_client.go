// Package main runs a demo client: submit a run from the dataset directory
// and stream its lifecycle events over the websocket endpoint.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	ref := os.Getenv("DATASET_REF")
	if ref == "" {
		ref = "file://corridor.yaml"
	}

	body, _ := json.Marshal(map[string]any{
		"datasetRef": ref,
		"scenario":   map[string]any{"name": "ws-demo"},
	})
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/runs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Role", "modeler")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var submitted struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		log.Fatal(err)
	}
	if submitted.ID == "" {
		log.Fatalf("submit failed with status %d", resp.StatusCode)
	}
	log.Printf("Run ID: %s (%s)", submitted.ID, submitted.Status)

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/runs/" + submitted.ID + "/events/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var evt struct {
				Type string         `json:"type"`
				Data map[string]any `json:"data"`
			}
			if err := c.ReadJSON(&evt); err != nil {
				return
			}
			data, _ := json.Marshal(evt.Data)
			log.Printf("WS <- %s: %s", evt.Type, data)
		}
	}()

	// The server closes the socket after the terminal event.
	select {
	case <-done:
	case <-time.After(5 * time.Minute):
		log.Print("timed out waiting for a terminal event")
	}
}
