package config

type Storage struct {
	SQLite *SQLiteStorage `mapstructure:"sqlite,omitempty"`
}

type SQLiteStorage struct {
	Path string `mapstructure:"path,omitempty"`
}
