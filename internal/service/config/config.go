package config

type Config struct {
	RateHistoryLimit int // ограничение выдачи истории курсов по умолчанию
}
