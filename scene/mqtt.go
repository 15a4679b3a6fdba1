package scene

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// PaddingSink receives padding reported over the command topic. The binder's
// SetPadding is the usual implementation.
type PaddingSink func(Padding) error

// CommandClient manages the MQTT connection and the command topic
// subscription. Commands arrive on {prefix}/cmd/{verb} and mutate the scene
// store; the store's subscribers take it from there.
type CommandClient struct {
	client      mqtt.Client
	config      *Config
	store       *Store
	padding     PaddingSink
	prefix      string
	isConnected bool
	mu          sync.RWMutex
}

var (
	globalClient *CommandClient
	clientMu     sync.Mutex
)

// InitCommandClient initializes the global MQTT command client. If neither
// the MQTT_BROKER env var nor config.MQTT.Broker is set, MQTT is disabled and
// this returns nil.
func InitCommandClient(config *Config, store *Store, padding PaddingSink) (*CommandClient, error) {
	clientMu.Lock()
	defer clientMu.Unlock()

	broker := os.Getenv("MQTT_BROKER")
	if broker == "" && config != nil && config.MQTT.Broker != "" {
		broker = config.MQTT.Broker
	}

	if broker == "" {
		log.Println("MQTT disabled: MQTT_BROKER not set")
		return nil, nil
	}

	if store == nil {
		return nil, fmt.Errorf("MQTT enabled but no scene store provided")
	}

	prefix := os.Getenv("MQTT_COMMAND_PREFIX")
	if prefix == "" && config != nil && config.MQTT.CommandPrefix != "" {
		prefix = config.MQTT.CommandPrefix
	}
	if prefix == "" {
		prefix = "geoscene"
	}

	client := &CommandClient{
		config:  config,
		store:   store,
		padding: padding,
		prefix:  prefix,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)

	clientID := os.Getenv("MQTT_CLIENT_ID")
	if clientID == "" && config != nil && config.MQTT.ClientID != "" {
		clientID = config.MQTT.ClientID
	}
	if clientID == "" {
		clientID = "geoscene"
	}
	opts.SetClientID(clientID)

	username := os.Getenv("MQTT_USERNAME")
	if username == "" && config != nil && config.MQTT.Username != "" {
		username = config.MQTT.Username
	}
	if username != "" {
		opts.SetUsername(username)
		password := os.Getenv("MQTT_PASSWORD")
		if password == "" && config != nil && config.MQTT.Password != "" {
			password = config.MQTT.Password
		}
		opts.SetPassword(password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(false)
	opts.SetOrderMatters(false)

	opts.SetOnConnectHandler(client.onConnect)
	opts.SetConnectionLostHandler(client.onConnectionLost)
	opts.SetReconnectingHandler(client.onReconnecting)

	client.client = mqtt.NewClient(opts)

	go client.connectWithRetry()

	globalClient = client
	return client, nil
}

// GetCommandClient returns the global command client instance.
func GetCommandClient() *CommandClient {
	clientMu.Lock()
	defer clientMu.Unlock()
	return globalClient
}

// connectWithRetry attempts to connect to the MQTT broker with exponential backoff
func (c *CommandClient) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		log.Println("Connecting to MQTT broker...")

		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				log.Println("Successfully connected to MQTT broker")
				c.setConnected(true)
				return
			}
			log.Printf("MQTT connection failed: %v", token.Error())
		} else {
			log.Println("MQTT connection timeout")
		}

		log.Printf("Retrying MQTT connection in %v...", retryDelay)
		time.Sleep(retryDelay)
		retryDelay *= 2
		if retryDelay > maxRetryDelay {
			retryDelay = maxRetryDelay
		}
	}
}

// onConnect subscribes to the command topic tree.
func (c *CommandClient) onConnect(client mqtt.Client) {
	c.setConnected(true)

	topic := c.prefix + "/cmd/#"
	log.Printf("MQTT connected, subscribing to %s", topic)
	token := client.Subscribe(topic, 0, c.handleMessage)

	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		log.Printf("Error subscribing to %s: %v", topic, token.Error())
	} else {
		log.Printf("Successfully subscribed to %s", topic)
	}
}

// onConnectionLost is called when the MQTT connection is lost.
// Auto-reconnect is enabled, so this is typically a transient event.
func (c *CommandClient) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("MQTT connection interrupted (%v), auto-reconnect will retry", err)
	c.setConnected(false)
}

func (c *CommandClient) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	log.Println("MQTT reconnecting...")
}

// handleMessage routes an incoming command by its topic verb.
func (c *CommandClient) handleMessage(client mqtt.Client, msg mqtt.Message) {
	verb := commandVerb(msg.Topic())
	payload := msg.Payload()
	log.Printf("Received command %q (topic: %s, size: %d bytes)", verb, msg.Topic(), len(payload))

	if err := c.HandleCommand(verb, payload); err != nil {
		log.Printf("Error handling command %q: %v", verb, err)
	}
}

// commandVerb extracts the verb from a {prefix}/cmd/{verb} topic.
func commandVerb(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// HandleCommand applies one decoded command to the store. Exported so the
// HTTP layer and tests share the exact dispatch the broker path uses.
func (c *CommandClient) HandleCommand(verb string, payload []byte) error {
	return ApplyCommand(c.store, c.padding, verb, payload)
}

// ApplyCommand decodes a command payload and applies it to the store.
// Payloads may be raw or zlib-compressed JSON.
func ApplyCommand(store *Store, padding PaddingSink, verb string, payload []byte) error {
	switch verb {
	case "clear":
		store.Reset()
		return nil
	}

	data, err := DecodeCommandPayload(payload)
	if err != nil {
		return err
	}

	switch verb {
	case "markers":
		var markers []Marker
		if err := json.Unmarshal(data, &markers); err != nil {
			return fmt.Errorf("parsing markers: %w", err)
		}
		return store.SetMarkers(markers)

	case "routes":
		var routes []Route
		if err := json.Unmarshal(data, &routes); err != nil {
			return fmt.Errorf("parsing routes: %w", err)
		}
		return store.SetRoutes(routes)

	case "camera":
		var pose CameraPose
		if err := json.Unmarshal(data, &pose); err != nil {
			return fmt.Errorf("parsing camera pose: %w", err)
		}
		return store.SetCameraTarget(&pose)

	case "view":
		var body struct {
			Mode ViewMode `json:"mode"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return fmt.Errorf("parsing view mode: %w", err)
		}
		return store.SetViewMode(body.Mode)

	case "suppress":
		var body struct {
			PreventAutoFrame bool `json:"preventAutoFrame"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return fmt.Errorf("parsing suppress flag: %w", err)
		}
		store.SetPreventAutoFrame(body.PreventAutoFrame)
		return nil

	case "padding":
		if padding == nil {
			return fmt.Errorf("no padding sink configured")
		}
		var pad Padding
		if err := json.Unmarshal(data, &pad); err != nil {
			return fmt.Errorf("parsing padding: %w", err)
		}
		return padding(pad)

	case "scene":
		s, err := ParseSceneJSON(data)
		if err != nil {
			return err
		}
		if err := store.SetMarkers(s.Markers); err != nil {
			return err
		}
		if err := store.SetRoutes(s.Routes); err != nil {
			return err
		}
		return store.SetViewMode(s.ViewMode)

	default:
		return fmt.Errorf("unknown command verb %q", verb)
	}
}

// IsConnected returns true if the MQTT client is connected.
func (c *CommandClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func (c *CommandClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect gracefully closes the MQTT connection.
func (c *CommandClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		log.Println("Disconnecting from MQTT broker...")
		c.client.Disconnect(250)
		c.setConnected(false)
	}
}

// GetClient returns the underlying MQTT client for publishing.
func (c *CommandClient) GetClient() mqtt.Client {
	return c.client
}

// newCommandClientWithMock creates a CommandClient around a provided
// mqtt.Client for tests.
func newCommandClientWithMock(client mqtt.Client, config *Config, store *Store, padding PaddingSink) *CommandClient {
	prefix := "geoscene"
	if config != nil && config.MQTT.CommandPrefix != "" {
		prefix = config.MQTT.CommandPrefix
	}
	return &CommandClient{
		client:  client,
		config:  config,
		store:   store,
		padding: padding,
		prefix:  prefix,
	}
}
