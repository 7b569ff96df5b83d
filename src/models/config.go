package models

// MConfig Structure
type MConfig struct {
	Name     string         `yaml:"name"`
	Host     string         `yaml:"host"`
	Port     int            `yaml:"port"`
	LogLevel string         `yaml:"log_level"`
	Stream   MStreamConfig  `yaml:"stream"`
	Store    MStoreConfig   `yaml:"store"`
	Storage  MStorageConfig `yaml:"storage"`
	Network  MNetworkConfig `yaml:"network"`
}

type MStreamConfig struct {
	URL               string `yaml:"url"`
	APIKey            string `yaml:"api_key"` // Optional: without it the subscription is never sent
	MMSI              string `yaml:"mmsi"`
	KeepaliveSeconds  int    `yaml:"keepalive_seconds"`
	InactivityMinutes int    `yaml:"inactivity_minutes"`
}

type MStoreConfig struct {
	Host       string `yaml:"host"` // Optional: without it persistence is disabled
	Email      string `yaml:"email"`
	Password   string `yaml:"password"`
	Collection string `yaml:"collection"`
	// CoordinateOrder is the order of the location pair written to the store:
	// "lonlat" ([longitude, latitude], GeoJSON) or "latlon".
	CoordinateOrder string `yaml:"coordinate_order"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	RetentionDays      int    `yaml:"retention_days"`
}

type MNetworkConfig struct {
	RequestTimeout int `yaml:"timeout"`
}
