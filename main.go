package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mohitkumar/intake/agent"
	"github.com/mohitkumar/intake/analytics"
	"github.com/mohitkumar/intake/config"
	"github.com/mohitkumar/intake/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type cfg struct {
	config.Config
}
type cli struct {
	cfg cfg
}

func setupFlags(cmd *cobra.Command) error {
	d := config.Defaults()
	cmd.Flags().String("config-file", "", "Path to config file.")
	cmd.Flags().String("env-file", ".env", "Path to dotenv file, ignored when missing.")
	cmd.Flags().String("redis-addr", strings.Join(d.RedisConfig.Addrs, ","), "comma separated list of redis host:port")
	cmd.Flags().String("redis-password", "", "redis password")
	cmd.Flags().Int("redis-pool-size", 0, "redis connection pool size, 0 uses the client default")
	cmd.Flags().String("namespace", d.RedisConfig.Namespace, "namespace used in storage")
	cmd.Flags().Int("http-port", d.HttpPort, "http port for rest endpoints")
	cmd.Flags().String("storage-impl", string(d.StorageType), "implementation of underline storage: redis, sqlite or memory")
	cmd.Flags().String("sqlite-path", d.SqliteConfig.Path, "database file for sqlite storage")
	cmd.Flags().String("encoder-decoder", string(d.EncoderDecoderType), "encoder decoder used to serialize data")
	cmd.Flags().String("detector-url", "", "url of the remote face detection service")
	cmd.Flags().Duration("detector-timeout", d.DetectorConfig.Timeout, "face detection timeout")
	cmd.Flags().Float64("face-threshold", d.DetectorConfig.FaceRatioThreshold, "minimum face to image area ratio")
	cmd.Flags().Int64("max-media-bytes", d.GateConfig.MaxMediaBytes, "largest accepted attachment")
	cmd.Flags().String("name-alphabet", d.GateConfig.NameAlphabet, "alphabet names must use: cyrillic, latin or greek")
	cmd.Flags().Int("workers", d.DispatchConfig.Workers, "session workers")
	cmd.Flags().Int("partition-count", d.DispatchConfig.PartitionCount, "partitions of the session ring")
	cmd.Flags().Int("worker-capacity", d.DispatchConfig.Capacity, "queued jobs per session worker")
	cmd.Flags().Int("session-history", d.SessionHistoryLimit, "session snapshots kept per user")
	cmd.Flags().String("definitions-dir", "", "directory with extra workflow definitions")
	cmd.Flags().Duration("handle-ttl", d.HandleTTL, "lifetime of prompt handles")
	cmd.Flags().Bool("reminders", false, "remind users with idle sessions")
	cmd.Flags().Duration("reminder-interval", d.ReminderConfig.Interval, "how often idle sessions are swept")
	cmd.Flags().Duration("reminder-idle", d.ReminderConfig.Idle, "inactivity before a reminder is sent")
	cmd.Flags().String("analytics-file", "", "write step analytics to this file")
	cmd.Flags().String("log-level", d.LogLevel, "log level")
	cmd.Flags().Bool("development", false, "human readable logs")
	return viper.BindPFlags(cmd.Flags())
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	var err error

	envFile, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return err
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	viper.SetEnvPrefix("INTAKE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	configFile, err := cmd.Flags().GetString("config-file")
	if err != nil {
		return err
	}
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err = viper.ReadInConfig(); err != nil {
			// it's ok if config file doesn't exist
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return err
			}
		}
	}

	c.cfg.RedisConfig.Addrs = strings.Split(viper.GetString("redis-addr"), ",")
	c.cfg.RedisConfig.Password = viper.GetString("redis-password")
	c.cfg.RedisConfig.PoolSize = viper.GetInt("redis-pool-size")
	c.cfg.RedisConfig.Namespace = viper.GetString("namespace")
	c.cfg.HttpPort = viper.GetInt("http-port")
	c.cfg.StorageType = config.StorageType(viper.GetString("storage-impl"))
	c.cfg.SqliteConfig.Path = viper.GetString("sqlite-path")
	c.cfg.EncoderDecoderType = config.EncoderDecoderType(viper.GetString("encoder-decoder"))
	c.cfg.DetectorConfig.Url = viper.GetString("detector-url")
	c.cfg.DetectorConfig.Timeout = viper.GetDuration("detector-timeout")
	c.cfg.DetectorConfig.FaceRatioThreshold = viper.GetFloat64("face-threshold")
	c.cfg.GateConfig.MaxMediaBytes = viper.GetInt64("max-media-bytes")
	c.cfg.GateConfig.NameAlphabet = viper.GetString("name-alphabet")
	c.cfg.DispatchConfig.Workers = viper.GetInt("workers")
	c.cfg.DispatchConfig.PartitionCount = viper.GetInt("partition-count")
	c.cfg.DispatchConfig.Capacity = viper.GetInt("worker-capacity")
	c.cfg.SessionHistoryLimit = viper.GetInt("session-history")
	c.cfg.DefinitionsDir = viper.GetString("definitions-dir")
	c.cfg.HandleTTL = viper.GetDuration("handle-ttl")
	c.cfg.ReminderConfig.Enabled = viper.GetBool("reminders")
	c.cfg.ReminderConfig.Interval = viper.GetDuration("reminder-interval")
	c.cfg.ReminderConfig.Idle = viper.GetDuration("reminder-idle")
	if file := viper.GetString("analytics-file"); file != "" {
		c.cfg.AnalyticsConfig = analytics.DataCollectorConfig{
			FileName:      file,
			CollectorType: analytics.LOG_FILE_DATA_COLLECTOR,
		}
	}
	c.cfg.LogLevel = viper.GetString("log-level")
	c.cfg.Development = viper.GetBool("development")
	return logger.Init(c.cfg.LogLevel, c.cfg.Development)
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	var err error
	agent, err := agent.New(c.cfg.Config)
	if err != nil {
		return err
	}
	err = agent.Start()
	if err != nil {
		return err
	}
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	return agent.Shutdown()
}

func main() {
	cli := &cli{}

	cmd := &cobra.Command{
		Use:     "intake",
		Short:   "Conversational onboarding workflow server",
		PreRunE: cli.setupConfig,
		RunE:    cli.run,
	}

	if err := setupFlags(cmd); err != nil {
		log.Fatal(err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
