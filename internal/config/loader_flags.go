package config

import (
	"flag"
	"time"
)

// cliFlags holds the command line flags. Zero values mean "not given";
// booleans are applied only when set explicitly.
type cliFlags struct {
	redisAddress         *string
	redisStream          *string
	redisConsumer        *string
	redisBatchSize       *int
	redisBlockTimeout    *time.Duration
	redisClaimIdle       *time.Duration
	redisConsumerIdle    *time.Duration
	redisCleanupInterval *time.Duration
	redisDialTimeout     *time.Duration
	redisReadTimeout     *time.Duration
	redisWriteTimeout    *time.Duration
	redisPingTimeout     *time.Duration

	mqttBroker            *string
	mqttClientID          *string
	mqttPublishTopic      *string
	mqttAckTopic          *string
	mqttQoS               *int
	mqttConnectTimeout    *time.Duration
	mqttWriteTimeout      *time.Duration
	mqttPoolSize          *int
	mqttMaxReconnect      *time.Duration
	mqttSubscribeTimeout  *time.Duration
	mqttDisconnectTimeout *int
	mqttTLSEnabled        *bool
	mqttCACert            *string
	mqttClientCert        *string
	mqttClientKey         *string
	mqttTLSInsecureSkip   *bool
	mqttUseCertCNPrefix   *bool

	pipelineBufferCapacity  *int
	pipelineShutdownTimeout *time.Duration
	pipelineErrorBackoff    *time.Duration
	pipelineAckTimeout      *time.Duration
	pipelinePendingTTL      *time.Duration
	pipelinePublishWorkers  *int

	payloadCodec         *string
	payloadMaxFrameBytes *int

	logLevel *string
}

// Command line flags (have precedence over environment variables)
var cli = registerFlags(flag.CommandLine)

func registerFlags(fs *flag.FlagSet) *cliFlags {
	return &cliFlags{
		redisAddress:         fs.String("redis-address", "", "Redis address"),
		redisStream:          fs.String("redis-stream", "", "Redis stream name"),
		redisConsumer:        fs.String("redis-consumer", "", "Redis consumer name"),
		redisBatchSize:       fs.Int("redis-batch-size", 0, "Redis batch size"),
		redisBlockTimeout:    fs.Duration("redis-block-timeout", 0, "Redis block timeout"),
		redisClaimIdle:       fs.Duration("redis-claim-idle", 0, "Redis claim idle time"),
		redisConsumerIdle:    fs.Duration("redis-consumer-idle-timeout", 0, "Redis consumer idle timeout"),
		redisCleanupInterval: fs.Duration("redis-cleanup-interval", 0, "Redis cleanup interval"),
		redisDialTimeout:     fs.Duration("redis-dial-timeout", 0, "Redis dial timeout"),
		redisReadTimeout:     fs.Duration("redis-read-timeout", 0, "Redis read timeout"),
		redisWriteTimeout:    fs.Duration("redis-write-timeout", 0, "Redis write timeout"),
		redisPingTimeout:     fs.Duration("redis-ping-timeout", 0, "Redis ping timeout"),

		mqttBroker:            fs.String("mqtt-broker", "", "MQTT broker URL"),
		mqttClientID:          fs.String("mqtt-client-id", "", "MQTT client ID"),
		mqttPublishTopic:      fs.String("mqtt-publish-topic", "", "MQTT topic payloads are published to"),
		mqttAckTopic:          fs.String("mqtt-ack-topic", "", "MQTT topic acknowledgments arrive on"),
		mqttQoS:               fs.Int("mqtt-qos", -1, "MQTT QoS (0, 1, or 2)"),
		mqttConnectTimeout:    fs.Duration("mqtt-connect-timeout", 0, "MQTT connect timeout"),
		mqttWriteTimeout:      fs.Duration("mqtt-write-timeout", 0, "MQTT write timeout"),
		mqttPoolSize:          fs.Int("mqtt-pool-size", 0, "MQTT connection pool size"),
		mqttMaxReconnect:      fs.Duration("mqtt-max-reconnect-interval", 0, "MQTT max reconnect interval"),
		mqttSubscribeTimeout:  fs.Duration("mqtt-subscribe-timeout", 0, "MQTT subscribe timeout"),
		mqttDisconnectTimeout: fs.Int("mqtt-disconnect-timeout", 0, "MQTT disconnect timeout (ms)"),
		mqttTLSEnabled:        fs.Bool("mqtt-tls-enabled", false, "Enable MQTT TLS"),
		mqttCACert:            fs.String("mqtt-ca-cert", "", "MQTT CA certificate path"),
		mqttClientCert:        fs.String("mqtt-client-cert", "", "MQTT client certificate path"),
		mqttClientKey:         fs.String("mqtt-client-key", "", "MQTT client key path"),
		mqttTLSInsecureSkip:   fs.Bool("mqtt-tls-insecure-skip", false, "Skip MQTT TLS verification"),
		mqttUseCertCNPrefix:   fs.Bool("mqtt-use-cert-cn-prefix", false, "Prefix topics with client cert CN"),

		pipelineBufferCapacity:  fs.Int("pipeline-buffer-capacity", 0, "Pipeline buffer capacity"),
		pipelineShutdownTimeout: fs.Duration("pipeline-shutdown-timeout", 0, "Pipeline shutdown timeout"),
		pipelineErrorBackoff:    fs.Duration("pipeline-error-backoff", 0, "Pipeline error backoff"),
		pipelineAckTimeout:      fs.Duration("pipeline-ack-timeout", 0, "Timeout for Redis work triggered by an ack"),
		pipelinePendingTTL:      fs.Duration("pipeline-pending-ttl", 0, "How long an ack ID waits for its acknowledgment"),
		pipelinePublishWorkers:  fs.Int("pipeline-publish-workers", 0, "Number of concurrent publish workers"),

		payloadCodec:         fs.String("payload-codec", "", "Wire codec for payload frames (json, msgpack)"),
		payloadMaxFrameBytes: fs.Int("payload-max-frame-bytes", -1, "Largest frame published, 0 for unlimited"),

		logLevel: fs.String("log-level", "", "Log level (trace, debug, info, warn, error)"),
	}
}

func applyRedisFlags(cfg *RedisConfig) {
	flagString(&cfg.Address, cli.redisAddress)
	flagString(&cfg.Stream, cli.redisStream)
	flagString(&cfg.Consumer, cli.redisConsumer)
	flagInt(&cfg.BatchSize, cli.redisBatchSize)
	flagDuration(&cfg.BlockTimeout, cli.redisBlockTimeout)
	flagDuration(&cfg.ClaimIdle, cli.redisClaimIdle)
	flagDuration(&cfg.ConsumerIdleTimeout, cli.redisConsumerIdle)
	flagDuration(&cfg.CleanupInterval, cli.redisCleanupInterval)
	flagDuration(&cfg.DialTimeout, cli.redisDialTimeout)
	flagDuration(&cfg.ReadTimeout, cli.redisReadTimeout)
	flagDuration(&cfg.WriteTimeout, cli.redisWriteTimeout)
	flagDuration(&cfg.PingTimeout, cli.redisPingTimeout)
}

func applyMQTTFlags(cfg *MQTTConfig) {
	flagString(&cfg.Broker, cli.mqttBroker)
	flagString(&cfg.ClientID, cli.mqttClientID)
	flagString(&cfg.PublishTopic, cli.mqttPublishTopic)
	flagString(&cfg.AckTopic, cli.mqttAckTopic)
	if q := *cli.mqttQoS; q >= 0 && q <= 2 {
		cfg.QoS = byte(q) // #nosec G115 - validated range 0-2
	}
	flagInt(&cfg.PoolSize, cli.mqttPoolSize)
	if v := *cli.mqttDisconnectTimeout; v > 0 {
		cfg.DisconnectTimeout = uint(v) // #nosec G115 - positive
	}
	flagDuration(&cfg.ConnectTimeout, cli.mqttConnectTimeout)
	flagDuration(&cfg.WriteTimeout, cli.mqttWriteTimeout)
	flagDuration(&cfg.MaxReconnectInterval, cli.mqttMaxReconnect)
	flagDuration(&cfg.SubscribeTimeout, cli.mqttSubscribeTimeout)
	flagString(&cfg.CACert, cli.mqttCACert)
	flagString(&cfg.ClientCert, cli.mqttClientCert)
	flagString(&cfg.ClientKey, cli.mqttClientKey)
	flagBool(&cfg.TLSEnabled, "mqtt-tls-enabled", cli.mqttTLSEnabled)
	flagBool(&cfg.InsecureSkip, "mqtt-tls-insecure-skip", cli.mqttTLSInsecureSkip)
	flagBool(&cfg.UseCertCNPrefix, "mqtt-use-cert-cn-prefix", cli.mqttUseCertCNPrefix)
}

func applyPipelineFlags(cfg *PipelineConfig) {
	flagInt(&cfg.BufferCapacity, cli.pipelineBufferCapacity)
	flagDuration(&cfg.ShutdownTimeout, cli.pipelineShutdownTimeout)
	flagDuration(&cfg.ErrorBackoff, cli.pipelineErrorBackoff)
	flagDuration(&cfg.AckTimeout, cli.pipelineAckTimeout)
	flagDuration(&cfg.PendingTTL, cli.pipelinePendingTTL)
	flagInt(&cfg.PublishWorkers, cli.pipelinePublishWorkers)
}

func applyPayloadFlags(cfg *PayloadConfig) {
	flagString(&cfg.Codec, cli.payloadCodec)
	if v := *cli.payloadMaxFrameBytes; v >= 0 {
		cfg.MaxFrameBytes = v
	}
}

func applyLogFlags(cfg *LogConfig) {
	flagString(&cfg.Level, cli.logLevel)
}

func flagString(dst *string, v *string) {
	if *v != "" {
		*dst = *v
	}
}

func flagInt(dst *int, v *int) {
	if *v != 0 {
		*dst = *v
	}
}

func flagDuration(dst *time.Duration, v *time.Duration) {
	if *v != 0 {
		*dst = *v
	}
}

func flagBool(dst *bool, name string, v *bool) {
	if isFlagSet(name) {
		*dst = *v
	}
}

// isFlagSet checks if a flag was explicitly set on the command line
func isFlagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
