package config

// HistoryConfig configures the optional run history store
type HistoryConfig struct {
	Enabled      bool   `json:"enabled" yaml:"enabled"`
	SQLiteDBPath string `json:"sqlite_db_path,omitempty" yaml:"sqlite_db_path,omitempty" validate:"required_if=Enabled true"`
}

// NewDefaultHistoryConfig creates default history configuration
func NewDefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		Enabled:      false,
		SQLiteDBPath: DefaultHistorySQLiteDBPath,
	}
}
