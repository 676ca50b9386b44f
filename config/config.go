package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const defaultPath = "."

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	// Session describes the marketplace identity this process runs as.
	Session SessionConfig `json:"session" yaml:"session"`

	HTTP struct {
		Port int `json:"port" yaml:"port"`

		Timeouts struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
	} `json:"http" yaml:"http"`

	// API configures the marketplace REST backend.
	API *APIConfig `json:"api" yaml:"api"`

	// Realtime configures the websocket channel.
	Realtime *RealtimeConfig `json:"realtime" yaml:"realtime"`

	// Tracking configures continuous location observation.
	Tracking *TrackingConfig `json:"tracking" yaml:"tracking"`

	// Delivery configures the delivery economics engine.
	Delivery *DeliveryConfig `json:"delivery" yaml:"delivery"`

	// Notification configures the proximity notification dispatcher.
	Notification *NotificationConfig `json:"notification" yaml:"notification"`

	// Storage configures the local badger store.
	Storage *StorageConfig `json:"storage" yaml:"storage"`

	// Firebase configures push notifications; nil disables them.
	Firebase *FirebaseConfig `json:"firebase" yaml:"firebase"`

	// PubSub configures the external event bus; nil disables publishing.
	PubSub *PubSubConfig `json:"pubsub" yaml:"pubsub"`

	// QRCode configures stall card rendering.
	QRCode *QRCodeConfig `json:"qrcode" yaml:"qrcode"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// SessionConfig identifies the running session.
type SessionConfig struct {
	UserID string `json:"userId" yaml:"userId"` // Marketplace user id of this session.
	Role   string `json:"role" yaml:"role"`     // "vendor" or "consumer"
	Token  string `json:"token" yaml:"token"`   // Bearer token issued by the auth subsystem.
}

// APIConfig defines the REST backend connection.
type APIConfig struct {
	BaseURL string        `json:"baseUrl" yaml:"baseUrl"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// RealtimeConfig defines websocket channel behavior.
type RealtimeConfig struct {
	// URL is the websocket endpoint without query parameters,
	// e.g. wss://api.example.com/socket.
	URL string `json:"url" yaml:"url"`

	HeartbeatInterval time.Duration `json:"heartbeatInterval" yaml:"heartbeatInterval"`
	// PongTimeout forces a reconnect when no pong arrives within it; a
	// half-open connection must not stay "connected" forever.
	PongTimeout          time.Duration `json:"pongTimeout" yaml:"pongTimeout"`
	ReconnectDelay       time.Duration `json:"reconnectDelay" yaml:"reconnectDelay"`
	MaxReconnectAttempts int           `json:"maxReconnectAttempts" yaml:"maxReconnectAttempts"`
	HandshakeTimeout     time.Duration `json:"handshakeTimeout" yaml:"handshakeTimeout"`
}

// TrackingConfig defines continuous observation thresholds.
type TrackingConfig struct {
	MinInterval           time.Duration `json:"minInterval" yaml:"minInterval"`
	MinDisplacementMeters float64       `json:"minDisplacementMeters" yaml:"minDisplacementMeters"`
	// LocationTimeout bounds a one-shot fix.
	LocationTimeout time.Duration `json:"locationTimeout" yaml:"locationTimeout"`
	// NearbyRadiusMeters is the radius used for snapshot seeding and the
	// server-side nearby subscription.
	NearbyRadiusMeters float64 `json:"nearbyRadiusMeters" yaml:"nearbyRadiusMeters"`
}

// DeliveryConfig defines the fee and ETA model constants.
type DeliveryConfig struct {
	BaseFee                float64 `json:"baseFee" yaml:"baseFee"`
	FeePerKm               float64 `json:"feePerKm" yaml:"feePerKm"`
	FreeDeliveryThreshold  float64 `json:"freeDeliveryThreshold" yaml:"freeDeliveryThreshold"`
	MaxDeliveryMeters      float64 `json:"maxDeliveryMeters" yaml:"maxDeliveryMeters"`
	BaseTimeMinutes        float64 `json:"baseTimeMinutes" yaml:"baseTimeMinutes"`
	TimePerKmMinutes       float64 `json:"timePerKmMinutes" yaml:"timePerKmMinutes"`
	RushHourMultiplier     float64 `json:"rushHourMultiplier" yaml:"rushHourMultiplier"`
	WeatherDelayMinutes    float64 `json:"weatherDelayMinutes" yaml:"weatherDelayMinutes"`
}

// NotificationConfig defines the dispatcher policy.
type NotificationConfig struct {
	AutoNotifyRadiusMeters float64       `json:"autoNotifyRadiusMeters" yaml:"autoNotifyRadiusMeters"`
	HistorySize            int           `json:"historySize" yaml:"historySize"`
	RenotifyCooldown       time.Duration `json:"renotifyCooldown" yaml:"renotifyCooldown"`
}

// StorageConfig defines the local badger store.
type StorageConfig struct {
	Path string `json:"path" yaml:"path"`
	// InMemory avoids touching disk; used by tests and ephemeral sessions.
	InMemory bool `json:"inMemory" yaml:"inMemory"`
}

// FirebaseConfig defines Firebase configuration for push notifications.
type FirebaseConfig struct {
	CredentialsPath string `json:"credentialsPath" yaml:"credentialsPath"`
	DeviceToken     string `json:"deviceToken" yaml:"deviceToken"`
}

// PubSubConfig defines the external event bus.
type PubSubConfig struct {
	Provider      string `json:"provider" yaml:"provider"` // "local" or "google"
	LocalEndpoint string `json:"localEndpoint" yaml:"localEndpoint"`
	ProjectID     string `json:"projectId" yaml:"projectId"`
	TopicID       string `json:"topicId" yaml:"topicId"`
}

// QRCodeConfig defines stall card rendering.
type QRCodeConfig struct {
	Size                 int    `json:"size" yaml:"size"`
	ErrorCorrectionLevel string `json:"errorCorrectionLevel" yaml:"errorCorrectionLevel"`
}

// LoadWithEnv loads a .yaml config through koanf and overlays environment
// variables (REALTIME_URL -> realtime.url).
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			searchPaths = append(searchPaths, filepath.Join(pwd, path))
		}
	}

	var configFile string
	var found bool
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
			found = true

			break
		}
	}

	if !found {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			// REALTIME_RECONNECT_DELAY -> realtime.reconnect.delay would be
			// wrong for camelCase keys, so only the first underscore splits
			// the section from the field.
			return strings.Replace(strings.ToLower(k), "_", ".", 1), v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

// New loads the configuration and applies defaults for omitted sections.
func New() (*Config, error) {
	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()

	return cfg, nil
}

// ApplyDefaults fills every nil or zero-valued section with the model
// constants the subsystem was specified with.
func (c *Config) ApplyDefaults() {
	if c.Session.Role == "" {
		c.Session.Role = "consumer"
	}
	if c.API == nil {
		c.API = &APIConfig{}
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = 10 * time.Second
	}
	if c.Realtime == nil {
		c.Realtime = &RealtimeConfig{}
	}
	if c.Realtime.HeartbeatInterval == 0 {
		c.Realtime.HeartbeatInterval = 30 * time.Second
	}
	if c.Realtime.PongTimeout == 0 {
		c.Realtime.PongTimeout = 2 * c.Realtime.HeartbeatInterval
	}
	if c.Realtime.ReconnectDelay == 0 {
		c.Realtime.ReconnectDelay = 3 * time.Second
	}
	if c.Realtime.MaxReconnectAttempts == 0 {
		c.Realtime.MaxReconnectAttempts = 5
	}
	if c.Realtime.HandshakeTimeout == 0 {
		c.Realtime.HandshakeTimeout = 10 * time.Second
	}
	if c.Tracking == nil {
		c.Tracking = &TrackingConfig{}
	}
	if c.Tracking.MinInterval == 0 {
		c.Tracking.MinInterval = 5 * time.Second
	}
	if c.Tracking.MinDisplacementMeters == 0 {
		c.Tracking.MinDisplacementMeters = 10
	}
	if c.Tracking.LocationTimeout == 0 {
		c.Tracking.LocationTimeout = 10 * time.Second
	}
	if c.Tracking.NearbyRadiusMeters == 0 {
		c.Tracking.NearbyRadiusMeters = 10000
	}
	if c.Delivery == nil {
		c.Delivery = &DeliveryConfig{}
	}
	if c.Delivery.BaseFee == 0 {
		c.Delivery.BaseFee = 20
	}
	if c.Delivery.FeePerKm == 0 {
		c.Delivery.FeePerKm = 5
	}
	if c.Delivery.FreeDeliveryThreshold == 0 {
		c.Delivery.FreeDeliveryThreshold = 500
	}
	if c.Delivery.MaxDeliveryMeters == 0 {
		c.Delivery.MaxDeliveryMeters = 10000
	}
	if c.Delivery.BaseTimeMinutes == 0 {
		c.Delivery.BaseTimeMinutes = 15
	}
	if c.Delivery.TimePerKmMinutes == 0 {
		c.Delivery.TimePerKmMinutes = 3
	}
	if c.Delivery.RushHourMultiplier == 0 {
		c.Delivery.RushHourMultiplier = 1.5
	}
	if c.Delivery.WeatherDelayMinutes == 0 {
		c.Delivery.WeatherDelayMinutes = 10
	}
	if c.Notification == nil {
		c.Notification = &NotificationConfig{}
	}
	if c.Notification.AutoNotifyRadiusMeters == 0 {
		c.Notification.AutoNotifyRadiusMeters = 1000
	}
	if c.Notification.HistorySize == 0 {
		c.Notification.HistorySize = 50
	}
	if c.Notification.RenotifyCooldown == 0 {
		c.Notification.RenotifyCooldown = 10 * time.Minute
	}
	if c.Storage == nil {
		c.Storage = &StorageConfig{Path: "./data/mandi"}
	}
	if c.Storage.Path == "" && !c.Storage.InMemory {
		c.Storage.Path = "./data/mandi"
	}
	if c.QRCode == nil {
		c.QRCode = &QRCodeConfig{}
	}
	if c.QRCode.Size == 0 {
		c.QRCode.Size = 256
	}
	if c.QRCode.ErrorCorrectionLevel == "" {
		c.QRCode.ErrorCorrectionLevel = "M"
	}
}
