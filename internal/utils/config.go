package utils

import (
	"time"

	"github.com/emsgrid/vitals-relay/pkg/file"
)

// Config represents the structure of the configuration file.
type Config struct {
	Server struct {
		Address       string        `yaml:"address"`         // HTTP listen address, host:port
		WebSocketPath string        `yaml:"websocket_path"`  // Path serving websocket upgrades
		WriteTimeout  time.Duration `yaml:"write_timeout"`   // Per-message websocket write deadline
		BroadcastPool int           `yaml:"broadcast_pool"`  // Fan-out worker count
		MinVersion    string        `yaml:"min_app_version"` // Minimum client app version, warn-only
	} `yaml:"server"`

	Dedup struct {
		Window        time.Duration `yaml:"window"`         // Reject repeats inside this window
		Retention     time.Duration `yaml:"retention"`      // Drop idle entries after this long
		SweepInterval time.Duration `yaml:"sweep_interval"` // How often idle entries are swept
	} `yaml:"dedup"`

	Simulation struct {
		Interval time.Duration `yaml:"interval"` // Gap between synthetic transmissions
	} `yaml:"simulation"`

	Auth struct {
		JWTSecret string        `yaml:"jwt_secret"` // HS256 signing secret for login tokens
		TokenTTL  time.Duration `yaml:"token_ttl"`  // Issued token lifetime
		Users     []UserEntry   `yaml:"users"`      // Static login accounts
	} `yaml:"auth"`

	Bridge struct {
		Enabled       bool   `yaml:"enabled"`        // Enable/disable MQTT republishing
		Broker        string `yaml:"broker"`         // MQTT broker address
		ClientID      string `yaml:"client_id"`      // MQTT client ID
		CACertificate string `yaml:"ca_certificate"` // Path to the CA certificate, empty for plain TCP
		TopicPrefix   string `yaml:"topic_prefix"`   // Topic prefix for republished events
		QOS           int    `yaml:"qos"`            // MQTT QoS level for republished events
	} `yaml:"bridge"`

	Logging struct {
		Level string `yaml:"level"` // zerolog level name
	} `yaml:"logging"`
}

// UserEntry is one static login account.
type UserEntry struct {
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	Name        string `yaml:"name"`
	Role        string `yaml:"role"`
	Department  string `yaml:"department"`
	AmbulanceID string `yaml:"ambulance_id"`
}

// LoadConfig loads the YAML configuration from the specified file.
// It returns a pointer to the Config struct and an error if loading fails.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	err := fileClient.ReadYamlFile(filename, &config)
	if err != nil {
		return nil, err
	}

	return &config, nil
}
