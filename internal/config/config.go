package config

// Config holds all application configuration, organized into logical
// groups.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	Pricing  PricingConfig  `mapstructure:"pricing" validate:"required"`
	Schedule ScheduleConfig `mapstructure:"schedule" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout_seconds" validate:"gte=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// RedisConfig contains the availability-cache settings.
type RedisConfig struct {
	Address  string `mapstructure:"address" validate:"required"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
	// AvailabilityTTL is the cache lifetime for availability responses, in
	// seconds. Keep it short: commits invalidate the local entry, but other
	// processes' commits are only picked up on expiry.
	AvailabilityTTL int `mapstructure:"availability_ttl_seconds" validate:"gt=0"`
}

// AuthConfig contains token verification settings. Token issuance is owned
// by the external auth service; this service only verifies.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
}

// PricingConfig carries the flat rates the pricing engine applies. Amounts
// are in the smallest currency unit.
type PricingConfig struct {
	// CustomStringFee is the flat service fee when the customer supplies
	// their own string.
	CustomStringFee int64 `mapstructure:"custom_string_fee" validate:"gt=0"`
	// StandaloneFee is the fallback base fee when no order or catalog fee
	// applies.
	StandaloneFee int64 `mapstructure:"standalone_fee" validate:"gt=0"`
	// CourierPickupFee is the logistics surcharge for courier collection.
	CourierPickupFee int64 `mapstructure:"courier_pickup_fee" validate:"gte=0"`
}

// ScheduleConfig carries appointment-slot display settings. Capacity per
// bucket is owned by the external scheduling-config service; only the
// bucket granularity lives here.
type ScheduleConfig struct {
	// SlotIntervalMinutes is the width of one time bucket. The required
	// visit duration shown to customers is interval * required units.
	SlotIntervalMinutes int `mapstructure:"slot_interval_minutes" validate:"gt=0"`
}
