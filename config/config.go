package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// Server
	Port   string
	AppEnv string

	// Meeting calendar
	MeetingWeekday time.Weekday

	// Import / batch writer
	ImportChunkSize int

	// Live view reconciliation
	RefreshInterval     time.Duration
	DeferredRefreshWait time.Duration
	BatchItemDelay      time.Duration
	RateLimitPause      time.Duration
	RateLimitMaxRetries int

	// AWS / report archive
	AWSRegion    string
	ReportBucket string

	// Logging
	LogLevel string
	LogFile  string

	// Feature toggles
	SkipMigrate bool
}

func (c *Config) GetDSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?charset=utf8mb4&parseTime=True&loc=Local"
}

var AppConfig *Config

func LoadConfig() {
	useSSM := getEnv("USE_SSM", "false") == "true"

	var (
		ssmClient *ssm.SSM
		paramMap  map[string]string
	)

	// Stage & base path for SSM (allows multi-env without code changes)
	basePath := getEnv("SSM_BASE_PATH", "/meetclub")
	stage := getEnv("STAGE", getEnv("APP_ENV", "production"))
	basePath = strings.TrimRight(basePath, "/")
	prefix := basePath + "/" + stage

	if useSSM {
		sess, err := session.NewSession(&aws.Config{Region: aws.String(getEnv("AWS_REGION", "ap-southeast-1"))})
		if err != nil {
			log.Fatal("Failed to create AWS session:", err)
		}
		ssmClient = ssm.New(sess)
		log.Printf("Using AWS SSM Parameter Store (prefix=%s)", prefix)
		paramMap = fetchSSMParameters(ssmClient, prefix)
	} else {
		if err := godotenv.Load(); err != nil {
			log.Println("Warning: .env file not found, using environment variables")
		}
	}

	// Helper accessor respecting map / env fallback
	getVal := func(key, def string) string {
		if useSSM {
			uk := strings.ToUpper(key)
			if v, ok := paramMap[uk]; ok && v != "" {
				return v
			}
		}
		return getEnv(strings.ToUpper(key), def)
	}

	getDuration := func(key, def string) time.Duration {
		raw := getVal(key, def)
		d, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatalf("Invalid %s format: %v", key, err)
		}
		return d
	}

	getInt := func(key, def string) int {
		raw := getVal(key, def)
		n, err := strconv.Atoi(raw)
		if err != nil {
			log.Fatalf("Invalid %s format: %v", key, err)
		}
		return n
	}

	// Weekday the group meets on; 0=Sunday ... 6=Saturday. Default Thursday.
	weekday := getInt("MEETING_WEEKDAY", "4")
	if weekday < 0 || weekday > 6 {
		log.Fatalf("MEETING_WEEKDAY out of range: %d", weekday)
	}

	AppConfig = &Config{
		DBHost:     getVal("DB_HOST", "localhost"),
		DBPort:     getVal("DB_PORT", "3306"),
		DBUser:     getVal("DB_USER", "root"),
		DBPassword: getVal("DB_PASSWORD", ""),
		DBName:     getVal("DB_NAME", "meetclub_go"),

		RedisHost:     getVal("REDIS_HOST", "localhost"),
		RedisPort:     getVal("REDIS_PORT", "6379"),
		RedisPassword: getVal("REDIS_PASSWORD", ""),

		Port:   getVal("PORT", "3000"),
		AppEnv: getVal("APP_ENV", "development"),

		MeetingWeekday: time.Weekday(weekday),

		ImportChunkSize: getInt("IMPORT_CHUNK_SIZE", "500"),

		RefreshInterval:     getDuration("REFRESH_INTERVAL", "60s"),
		DeferredRefreshWait: getDuration("DEFERRED_REFRESH_WAIT", "1500ms"),
		BatchItemDelay:      getDuration("BATCH_ITEM_DELAY", "30ms"),
		RateLimitPause:      getDuration("RATE_LIMIT_PAUSE", "5m"),
		RateLimitMaxRetries: getInt("RATE_LIMIT_MAX_RETRIES", "3"),

		AWSRegion:    getVal("AWS_REGION", "ap-southeast-1"),
		ReportBucket: getVal("REPORT_BUCKET", ""),

		LogLevel: getVal("LOG_LEVEL", "info"),
		LogFile:  getVal("LOG_FILE", "logs/app.log"),

		SkipMigrate: strings.ToLower(getVal("SKIP_MIGRATE", "false")) == "true",
	}

	validateConfig(AppConfig, useSSM)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// fetchSSMParameters reads all parameters under prefix and returns map with UPPERCASE keys.
func fetchSSMParameters(client *ssm.SSM, prefix string) map[string]string {
	out := make(map[string]string)
	next := aws.String("")
	for {
		in := &ssm.GetParametersByPathInput{
			Path:           aws.String(prefix),
			WithDecryption: aws.Bool(true),
			Recursive:      aws.Bool(true),
		}
		if *next != "" {
			in.NextToken = next
		}
		resp, err := client.GetParametersByPath(in)
		if err != nil {
			log.Printf("Warning: unable to fetch SSM parameters for prefix %s: %v", prefix, err)
			break
		}
		for _, p := range resp.Parameters {
			if p.Name == nil || p.Value == nil {
				continue
			}
			name := *p.Name
			// last segment after '/'
			idx := strings.LastIndex(name, "/")
			key := name
			if idx >= 0 {
				key = name[idx+1:]
			}
			if key == "" {
				continue
			}
			out[strings.ToUpper(key)] = *p.Value
		}
		if resp.NextToken == nil || *resp.NextToken == "" {
			break
		}
		next = resp.NextToken
	}
	return out
}

func validateConfig(c *Config, usedSSM bool) {
	// Only enforce stricter rules in production
	if strings.ToLower(c.AppEnv) != "production" {
		return
	}
	if strings.TrimSpace(c.DBPassword) == "" {
		log.Fatalf("Missing required secret DB_PASSWORD in production (SSM=%v)", usedSSM)
	}
	if c.ImportChunkSize <= 0 {
		log.Fatal("IMPORT_CHUNK_SIZE must be positive")
	}
}
