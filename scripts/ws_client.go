// Package main runs a demo WebSocket client: it submits an annealing job and
// prints the job events until the server closes the stream.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

type point struct {
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	rng := rand.New(rand.NewSource(1))
	wps := make([]point, 12)
	for i := range wps {
		wps[i] = point{Name: fmt.Sprintf("sys-%02d", i), X: rng.Float64() * 40, Y: rng.Float64() * 40, Z: rng.Float64() * 40}
	}
	body, _ := json.Marshal(map[string]any{
		"algorithm": "annealing",
		"origin":    point{Name: "home"},
		"waypoints": wps,
		"jumpRange": 25.0,
	})
	resp, err := http.Post(base+"/v1/jobs", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusAccepted {
		log.Fatalf("submit: %s", resp.Status)
	}
	var job struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		log.Fatal(err)
	}
	log.Printf("Job ID: %s", job.ID)

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/jobs/" + job.ID + "/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	for {
		var m wsMessage
		if err := c.ReadJSON(&m); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return
			}
			log.Printf("read: %v", err)
			return
		}
		b, _ := json.Marshal(m.Data)
		log.Printf("WS <- %s: %s", m.Type, b)
	}
}
