package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig
	S3     S3Config
	SQS    SQSConfig
}

type ServerConfig struct {
	Host string
	Port string
}

type S3Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UploadBucket    string
	ProcessedBucket string
}

type SQSConfig struct {
	// QueueURL is the SQS queue receiving the upload bucket's
	// object-created notifications. Empty disables the in-process consumer.
	QueueURL string
}

func Load() (*Config, error) {
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("AWS_REGION", "us-east-1")
	viper.SetDefault("S3_ENDPOINT", "")
	viper.SetDefault("S3_ACCESS_KEY_ID", "")
	viper.SetDefault("S3_SECRET_ACCESS_KEY", "")
	viper.SetDefault("UPLOAD_BUCKET_NAME", "imageresizer-imageuploads")
	viper.SetDefault("PROCESSED_BUCKET_NAME", "imageresizer-imageprocessed")
	viper.SetDefault("SQS_QUEUE_URL", "")

	viper.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("SERVER_HOST"),
			Port: viper.GetString("SERVER_PORT"),
		},
		S3: S3Config{
			Region:          viper.GetString("AWS_REGION"),
			Endpoint:        viper.GetString("S3_ENDPOINT"),
			AccessKeyID:     viper.GetString("S3_ACCESS_KEY_ID"),
			SecretAccessKey: viper.GetString("S3_SECRET_ACCESS_KEY"),
			UploadBucket:    viper.GetString("UPLOAD_BUCKET_NAME"),
			ProcessedBucket: viper.GetString("PROCESSED_BUCKET_NAME"),
		},
		SQS: SQSConfig{
			QueueURL: viper.GetString("SQS_QUEUE_URL"),
		},
	}

	return cfg, nil
}
