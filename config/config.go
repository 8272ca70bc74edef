package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/dyike/FundManagerGo/consts"
)

type Config struct {
	ProjectDir string `json:"project_dir"`
	ResultsDir string `json:"results_dir"`
	DataDir    string `json:"data_dir"`

	// Agent service endpoints, one per consultation stage
	FinancialAnalystURL   string `json:"financial_analyst_url"`
	PortfolioArchitectURL string `json:"portfolio_architect_url"`
	RiskManagerURL        string `json:"risk_manager_url"`

	// Memory service
	MemoryServiceURL string `json:"memory_service_url"`
	MemoryId         string `json:"memory_id"`

	Debug bool `json:"debug"`
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()
	return DefaultConfigWithRoot(currentDir)
}

func DefaultConfigWithRoot(root string) *Config {
	cfg := &Config{
		ProjectDir: root,
		ResultsDir: filepath.Join(root, "results"),
		DataDir:    filepath.Join(root, "data"),

		Debug: false,
	}

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg.loadFromEnv()

	return cfg
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("PROJECT_DIR"); val != "" {
		c.ProjectDir = val
	}
	if val := os.Getenv("RESULTS_DIR"); val != "" {
		c.ResultsDir = val
	}
	if val := os.Getenv("DATA_DIR"); val != "" {
		c.DataDir = val
	}

	if val := os.Getenv("FINANCIAL_ANALYST_URL"); val != "" {
		c.FinancialAnalystURL = val
	}
	if val := os.Getenv("PORTFOLIO_ARCHITECT_URL"); val != "" {
		c.PortfolioArchitectURL = val
	}
	if val := os.Getenv("RISK_MANAGER_URL"); val != "" {
		c.RiskManagerURL = val
	}

	if val := os.Getenv("MEMORY_SERVICE_URL"); val != "" {
		c.MemoryServiceURL = val
	}
	if val := os.Getenv("FUND_MEMORY_ID"); val != "" {
		c.MemoryId = val
	}

	if val := os.Getenv("FUNDMANAGER_DEBUG"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Debug = enabled
		}
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.ProjectDir) == "" {
		return fmt.Errorf("project_dir is required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir is required")
	}
	if strings.TrimSpace(c.ResultsDir) == "" {
		return fmt.Errorf("results_dir is required")
	}
	return nil
}

// StageEndpoints maps stage names to their agent endpoints.
func (c *Config) StageEndpoints() map[string]string {
	return map[string]string{
		consts.StageFinancial: c.FinancialAnalystURL,
		consts.StagePortfolio: c.PortfolioArchitectURL,
		consts.StageRisk:      c.RiskManagerURL,
	}
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.ProjectDir, c.ResultsDir, c.DataDir}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}
