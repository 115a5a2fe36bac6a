package config

type Config struct {
	DBDsn string // пустая строка - хранилище в памяти
}
