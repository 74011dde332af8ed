package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Doctor is the clinician who dictates and signs the letter.
type Doctor struct {
	ID             string   `mapstructure:"id" validate:"required"`
	Name           string   `mapstructure:"name" validate:"required"`
	Letterhead     string   `mapstructure:"letterhead" validate:"required"`
	Qualifications string   `mapstructure:"qualifications"`
	Contact        string   `mapstructure:"contact"`
	Signature      []string `mapstructure:"signature" validate:"min=1"`
	ApprovedBy     string   `mapstructure:"approved_by" validate:"required"`
}

// Patient carries the consultation context posted with every recording.
type Patient struct {
	ID               string `mapstructure:"id" validate:"required"`
	Name             string `mapstructure:"name"`
	Email            string `mapstructure:"email" validate:"omitempty,email"`
	Phone            string `mapstructure:"phone"`
	Address          string `mapstructure:"address"`
	AppointmentID    string `mapstructure:"appointment_id"`
	ConsultationType string `mapstructure:"consultation_type"`
}

type DocServer struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	LogoPath string `mapstructure:"logo_path"`
}

type AppConfig struct {
	GenerationURL string        `mapstructure:"generation_url" validate:"required,url"`
	DeliveryURL   string        `mapstructure:"delivery_url" validate:"required,url"`
	HTTPTimeout   time.Duration `mapstructure:"http_timeout" validate:"required"`
	OutputDir     string        `mapstructure:"output_dir" validate:"required"`
	SlotFile      string        `mapstructure:"slot_file"`
	Device        string        `mapstructure:"device"`
	HandoffDelay  time.Duration `mapstructure:"handoff_delay"`
	NavigateDelay time.Duration `mapstructure:"navigate_delay"`
	LogLevel      string        `mapstructure:"log_level" validate:"oneof=debug info warn error"`

	Doctor    Doctor    `mapstructure:"doctor" validate:"required"`
	Patient   Patient   `mapstructure:"patient" validate:"required"`
	DocServer DocServer `mapstructure:"docserver" validate:"required"`
}

// InitConfig reads .env (or the file named by ENV_PATH / envPath) plus the
// process environment. Nested keys use "__", e.g. DOCTOR__NAME.
func InitConfig(envPath string) (*viper.Viper, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter("__"))

	v.AddConfigPath(".")
	v.SetConfigName(".env")
	v.SetConfigType("env")
	if envPath == "" {
		envPath = os.Getenv("ENV_PATH")
	}
	if envPath != "" {
		v.SetConfigFile(envPath)
	}
	v.AutomaticEnv()
	setDefault(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if envPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return v, nil
}

func setDefault(v *viper.Viper) {
	// keeping watch on https://github.com/spf13/viper/issues/188:
	// AutomaticEnv only sees keys viper already knows, so every key gets a default.
	v.SetDefault("GENERATION_URL", "http://localhost:5678/webhook/cliniclettergeneration")
	v.SetDefault("DELIVERY_URL", "http://localhost:5678/webhook/sendclinicletter")
	v.SetDefault("HTTP_TIMEOUT", 120*time.Second)
	v.SetDefault("OUTPUT_DIR", os.TempDir())
	v.SetDefault("SLOT_FILE", "")
	v.SetDefault("DEVICE", "")
	v.SetDefault("HANDOFF_DELAY", 1500*time.Millisecond)
	v.SetDefault("NAVIGATE_DELAY", 2500*time.Millisecond)
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("DOCTOR__ID", "dr-001")
	v.SetDefault("DOCTOR__NAME", "Mr Rajesh")
	v.SetDefault("DOCTOR__LETTERHEAD", "Mr MANGATTIL RAJESH")
	v.SetDefault("DOCTOR__QUALIFICATIONS", "FRCS (Gen) MCh (Orth) FRCS (Orth) MBA")
	v.SetDefault("DOCTOR__CONTACT", "Office: 0203 1500 222 | Mob: 07928 333 999")
	v.SetDefault("DOCTOR__SIGNATURE", []string{
		"Mr MANGATTIL RAJESH FRCS (Orth) MBA",
		"Clinical Lead in Spine Surgery",
		"Consultant Spine Surgeon",
		"Royal London Hospital",
		"LONDON",
	})
	v.SetDefault("DOCTOR__APPROVED_BY", "Mr Mangattil Rajesh")

	v.SetDefault("PATIENT__ID", "1")
	v.SetDefault("PATIENT__NAME", "Mrs. Sarah Henderson")
	v.SetDefault("PATIENT__EMAIL", "sarah.henderson@email.com")
	v.SetDefault("PATIENT__PHONE", "")
	v.SetDefault("PATIENT__ADDRESS", "London")
	v.SetDefault("PATIENT__APPOINTMENT_ID", "1")
	v.SetDefault("PATIENT__CONSULTATION_TYPE", "consultation")

	v.SetDefault("DOCSERVER__ADDR", ":3000")
	v.SetDefault("DOCSERVER__LOGO_PATH", "")
}

// GetApplicationConfig unmarshals and validates the configuration.
func GetApplicationConfig(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// Load is InitConfig followed by GetApplicationConfig.
func Load(envPath string) (*AppConfig, error) {
	v, err := InitConfig(envPath)
	if err != nil {
		return nil, err
	}
	return GetApplicationConfig(v)
}
