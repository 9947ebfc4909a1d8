package config

import (
	"os"
	"strconv"
	"time"
)

func loadRedisFromEnv(cfg *RedisConfig) {
	envString(&cfg.Address, "REDIS_ADDRESS")
	envString(&cfg.Stream, "REDIS_STREAM")
	envString(&cfg.Consumer, "REDIS_CONSUMER")
	envInt(&cfg.BatchSize, "REDIS_BATCH_SIZE")
	envDuration(&cfg.BlockTimeout, "REDIS_BLOCK_TIMEOUT")
	envDuration(&cfg.ClaimIdle, "REDIS_CLAIM_IDLE")
	envDuration(&cfg.ConsumerIdleTimeout, "REDIS_CONSUMER_IDLE_TIMEOUT")
	envDuration(&cfg.CleanupInterval, "REDIS_CLEANUP_INTERVAL")
	envDuration(&cfg.DialTimeout, "REDIS_DIAL_TIMEOUT")
	envDuration(&cfg.ReadTimeout, "REDIS_READ_TIMEOUT")
	envDuration(&cfg.WriteTimeout, "REDIS_WRITE_TIMEOUT")
	envDuration(&cfg.PingTimeout, "REDIS_PING_TIMEOUT")
}

func loadMQTTFromEnv(cfg *MQTTConfig) {
	envString(&cfg.Broker, "MQTT_BROKER")
	envString(&cfg.ClientID, "MQTT_CLIENT_ID")
	envString(&cfg.PublishTopic, "MQTT_PUBLISH_TOPIC")
	envString(&cfg.AckTopic, "MQTT_ACK_TOPIC")
	if v, ok := lookupEnvInt("MQTT_QOS"); ok && v >= 0 && v <= 2 {
		cfg.QoS = byte(v) // #nosec G115 - validated range 0-2
	}
	envInt(&cfg.PoolSize, "MQTT_POOL_SIZE")
	if v := getEnvInt("MQTT_DISCONNECT_TIMEOUT"); v > 0 {
		cfg.DisconnectTimeout = uint(v) // #nosec G115 - positive
	}
	envDuration(&cfg.ConnectTimeout, "MQTT_CONNECT_TIMEOUT")
	envDuration(&cfg.WriteTimeout, "MQTT_WRITE_TIMEOUT")
	envDuration(&cfg.MaxReconnectInterval, "MQTT_MAX_RECONNECT_INTERVAL")
	envDuration(&cfg.SubscribeTimeout, "MQTT_SUBSCRIBE_TIMEOUT")
	envBool(&cfg.TLSEnabled, "MQTT_TLS_ENABLED")
	envString(&cfg.CACert, "MQTT_CA_CERT")
	envString(&cfg.ClientCert, "MQTT_CLIENT_CERT")
	envString(&cfg.ClientKey, "MQTT_CLIENT_KEY")
	envBool(&cfg.InsecureSkip, "MQTT_TLS_INSECURE_SKIP")
	envBool(&cfg.UseCertCNPrefix, "MQTT_USE_CERT_CN_PREFIX")
}

func loadPipelineFromEnv(cfg *PipelineConfig) {
	envInt(&cfg.BufferCapacity, "PIPELINE_BUFFER_CAPACITY")
	envDuration(&cfg.ShutdownTimeout, "PIPELINE_SHUTDOWN_TIMEOUT")
	envDuration(&cfg.ErrorBackoff, "PIPELINE_ERROR_BACKOFF")
	envDuration(&cfg.AckTimeout, "PIPELINE_ACK_TIMEOUT")
	envDuration(&cfg.PendingTTL, "PIPELINE_PENDING_TTL")
	envInt(&cfg.PublishWorkers, "PIPELINE_PUBLISH_WORKERS")
}

func loadPayloadFromEnv(cfg *PayloadConfig) {
	envString(&cfg.Codec, "PAYLOAD_CODEC")
	if v, ok := lookupEnvInt("PAYLOAD_MAX_FRAME_BYTES"); ok {
		cfg.MaxFrameBytes = v
	}
}

func loadLogFromEnv(cfg *LogConfig) {
	envString(&cfg.Level, "LOG_LEVEL")
}

// Setters leave the destination untouched when the variable is unset or unparsable.

func envString(dst *string, key string) {
	if v := getEnvString(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v, ok := lookupEnvInt(key); ok && v != 0 {
		*dst = v
	}
}

func envDuration(dst *time.Duration, key string) {
	if v := getEnvDuration(key); v != 0 {
		*dst = v
	}
}

func envBool(dst *bool, key string) {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		*dst = v
	}
}

func getEnvString(key string) string {
	return os.Getenv(key)
}

func getEnvInt(key string) int {
	v, _ := lookupEnvInt(key)
	return v
}

func lookupEnvInt(key string) (int, bool) {
	value := os.Getenv(key)
	if value == "" {
		return 0, false
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return intValue, true
}

func getEnvDuration(key string) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return 0
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return duration
}
