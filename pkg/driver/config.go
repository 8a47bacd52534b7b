package driver

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultImagePort is used when a remote driver entry names an image but no port.
const DefaultImagePort = "8080"

// RemoteConfig describes one remote driver. Either URL or Image is required.
type RemoteConfig struct {
	ID              string `mapstructure:"id"`
	Pattern         string `mapstructure:"pattern"`
	Image           string `mapstructure:"image"`
	ImagePort       string `mapstructure:"imageport"`
	ImageProperties bool   `mapstructure:"imageproperties"`
	URL             string `mapstructure:"url"`
}

// Config holds remote driver configuration.
type Config struct {
	File    string         `mapstructure:"file"`    // JSON file with a top-level "drivers" array
	Timeout time.Duration  `mapstructure:"timeout"` // HTTP timeout per request
	Remote  []RemoteConfig `mapstructure:"remote"`  // Inline driver entries
}

// SetDefaults sets viper defaults for driver configuration.
func (c *Config) SetDefaults(v *viper.Viper, prefix string) {
	p := ""
	if prefix != "" {
		p = prefix + "."
	}
	v.SetDefault(p+"file", "")
	v.SetDefault(p+"timeout", "30s")
}

// LoadFile reads the driver entries from c.File.
func (c *Config) LoadFile() ([]RemoteConfig, error) {
	if c.File == "" {
		return nil, nil
	}

	v := viper.New()
	v.SetConfigFile(c.File)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: failed to read driver file: %v", ErrConfiguration, err)
	}

	var entries []RemoteConfig
	if err := v.UnmarshalKey("drivers", &entries); err != nil {
		return nil, fmt.Errorf("%w: failed to parse driver file: %v", ErrConfiguration, err)
	}
	return entries, nil
}

// Register builds an HTTPDriver for every inline and file entry and appends
// them to reg in order. Inline entries come first.
func (c *Config) Register(reg *Registry, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	fileEntries, err := c.LoadFile()
	if err != nil {
		return err
	}

	entries := make([]RemoteConfig, 0, len(c.Remote)+len(fileEntries))
	entries = append(entries, c.Remote...)
	entries = append(entries, fileEntries...)

	for i, entry := range entries {
		if err := registerRemote(reg, entry, i+1, c.Timeout, logger); err != nil {
			return err
		}
	}
	return nil
}

func registerRemote(reg *Registry, entry RemoteConfig, position int, timeout time.Duration, logger *slog.Logger) error {
	if entry.Pattern == "" {
		return fmt.Errorf("%w: missing 'pattern' entry in driver configuration", ErrConfiguration)
	}
	if entry.Image == "" && entry.URL == "" {
		return fmt.Errorf("%w: missing 'image' and 'url' entry in driver configuration (need either one)", ErrConfiguration)
	}

	resolveURI, propertiesURI := entry.URL, ""
	if resolveURI == "" {
		resolveURI, propertiesURI = ImageURIs(entry.Image, entry.ImagePort, entry.ImageProperties)
	}

	d, err := NewHTTPDriver(entry.Pattern, resolveURI, propertiesURI, timeout)
	if err != nil {
		return err
	}

	id := entry.ID
	if id == "" {
		id = "driver"
		if entry.Image != "" {
			id += "-" + entry.Image
		}
		if entry.Image == "" || reg.Has(id) {
			id += fmt.Sprintf("-%d", position)
		}
	}

	if err := reg.Register(id, entry.Pattern, d); err != nil {
		return err
	}

	logger.Info("added driver", "id", id, "resolveUri", resolveURI, "propertiesUri", propertiesURI)
	return nil
}

// ImageURIs derives the resolve and properties URLs of a driver running as a
// local container image.
func ImageURIs(image, port string, withProperties bool) (resolveURI, propertiesURI string) {
	name := image
	if i := strings.Index(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, ":"); i >= 0 {
		name = name[:i]
	}
	if port == "" {
		port = DefaultImagePort
	}

	base := fmt.Sprintf("http://localhost:%s/%s/", port, name)
	resolveURI = base + "1.0/identifiers/$1"
	if withProperties {
		propertiesURI = base + "1.0/properties"
	}
	return resolveURI, propertiesURI
}
