package scene

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// posePayload is the wire form of a committed camera pose.
type posePayload struct {
	Center    GeoPoint `json:"center"`
	Range     float64  `json:"range"`
	Heading   float64  `json:"heading"`
	Tilt      float64  `json:"tilt"`
	Roll      float64  `json:"roll"`
	Timestamp int64    `json:"timestamp"`
}

// Publisher mirrors committed camera poses and scene snapshots back onto
// MQTT so other consumers (dashboards, recorders) can follow the view.
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
	lastPose      *posePayload
	mu            sync.RWMutex
}

// NewPublisher creates a publisher. If client is nil, publishing is disabled
// (for testing and MQTT-less deployments).
func NewPublisher(client mqtt.Client, configPrefix string) *Publisher {
	prefix := os.Getenv("MQTT_PUBLISH_PREFIX")
	if prefix == "" {
		prefix = configPrefix
	}
	if prefix == "" {
		prefix = "geoscene"
	}

	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           0,    // fire and forget for view updates
		retain:        true, // retain latest so new subscribers catch up
	}
}

// PublishPose publishes a committed camera pose to {prefix}/camera.
func (p *Publisher) PublishPose(pose CameraPose) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	body := &posePayload{
		Center:    pose.Center,
		Range:     pose.Range,
		Heading:   pose.Heading,
		Tilt:      pose.Tilt,
		Roll:      pose.Roll,
		Timestamp: time.Now().Unix(),
	}

	p.mu.Lock()
	p.lastPose = body
	p.mu.Unlock()

	topic := fmt.Sprintf("%s/camera", p.publishPrefix)
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling camera pose: %w", err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	log.Printf("Published camera pose: (%.5f, %.5f) range=%.0fm",
		pose.Center.Lat, pose.Center.Lng, pose.Range)
	return nil
}

// PublishScene publishes the full scene snapshot to {prefix}/scene.
func (p *Publisher) PublishScene(s SceneState) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	topic := fmt.Sprintf("%s/scene", p.publishPrefix)

	message := map[string]interface{}{
		"scene":     s,
		"timestamp": time.Now().Unix(),
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshaling scene: %w", err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	return nil
}

// LastPose returns the most recently published camera pose.
func (p *Publisher) LastPose() (CameraPose, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.lastPose == nil {
		return CameraPose{}, false
	}
	return CameraPose{
		Center:  p.lastPose.Center,
		Range:   p.lastPose.Range,
		Heading: p.lastPose.Heading,
		Tilt:    p.lastPose.Tilt,
		Roll:    p.lastPose.Roll,
	}, true
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}
