package config

import "time"

func defaultRedisConfig() RedisConfig {
	return RedisConfig{
		Address:             "localhost:6379",
		Stream:              "payload-stream",
		Consumer:            "relay-1",
		BatchSize:           500,
		BlockTimeout:        5 * time.Second,
		ClaimIdle:           30 * time.Second,
		ConsumerIdleTimeout: 5 * time.Minute,
		CleanupInterval:     1 * time.Minute,
		DialTimeout:         10 * time.Second,
		ReadTimeout:         10 * time.Second,
		WriteTimeout:        5 * time.Second,
		PingTimeout:         5 * time.Second,
	}
}

func defaultMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Broker:               "tcp://localhost:1883",
		ClientID:             "payload-relay",
		PublishTopic:         "relay/payloads",
		AckTopic:             "relay/acks",
		QoS:                  1,
		ConnectTimeout:       10 * time.Second,
		WriteTimeout:         30 * time.Second,
		PoolSize:             4,
		MaxReconnectInterval: 10 * time.Second,
		SubscribeTimeout:     10 * time.Second,
		DisconnectTimeout:    1000,
	}
}

func defaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		BufferCapacity:  10000,
		ShutdownTimeout: 30 * time.Second,
		ErrorBackoff:    1 * time.Second,
		AckTimeout:      5 * time.Second,
		PendingTTL:      30 * time.Second,
		PublishWorkers:  8,
	}
}

func defaultPayloadConfig() PayloadConfig {
	return PayloadConfig{
		Codec:         "json",
		MaxFrameBytes: 256 * 1024,
	}
}

func defaultLogConfig() LogConfig {
	return LogConfig{Level: "info"}
}

// defaultConfig returns a complete configuration with all default values
func defaultConfig() *Config {
	return &Config{
		Redis:    defaultRedisConfig(),
		MQTT:     defaultMQTTConfig(),
		Pipeline: defaultPipelineConfig(),
		Payload:  defaultPayloadConfig(),
		Log:      defaultLogConfig(),
	}
}
