package setup

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/reckon/config"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// RunTUI launches the terminal configuration wizard.
func RunTUI() error {
	var (
		platform      string
		settlementStr string
		epsilonStr    string
		prefer        string
		lookbackStr   string
		watchStr      string
		webAddr       string
		journalDir    string
		confirm       bool
	)

	// defaults
	settlementStr = "USDT, USDC, USD"
	epsilonStr = "1.0"
	prefer = "derivatives"
	lookbackStr = "7"
	watchStr = "0s"

	// step 1: welcome
	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("RECKON CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Let's wire up your equity reconciliation.\n"))

	// platform
	fmt.Println(stepStyle.Render("STEP 1: VENUE"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select Exchange Platform").
				Options(
					huh.NewOption("Bybit", "bybit"),
					huh.NewOption("Binance", "binance"),
					huh.NewOption("Hyperliquid", "hyperliquid"),
				).
				Value(&platform),
		),
	).Run()
	if err != nil {
		return err
	}

	// settlement set
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("RECKON CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 2: SETTLEMENT CURRENCIES"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Settlement currencies").
				Description("Comma-separated; counted 1:1 as settlement units").
				Value(&settlementStr).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("at least one settlement currency is required")
					}
					return nil
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	// shared-pool policy
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("RECKON CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: SHARED-POOL POLICY"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Detection epsilon").
				Description("Max subtotal difference still read as one pool (settlement units)").
				Value(&epsilonStr).
				Validate(validateEpsilon),
			huh.NewSelect[string]().
				Title("Which subtotal wins for a shared pool?").
				Options(
					huh.NewOption("Derivatives (usually includes unrealized PnL)", "derivatives"),
					huh.NewOption("Spot", "spot"),
				).
				Value(&prefer),
		),
	).Run()
	if err != nil {
		return err
	}

	// activity window
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("RECKON CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 4: ACTIVITY WINDOW"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Fill lookback (days)").
				Description("How far back to aggregate recent fills").
				Value(&lookbackStr).
				Validate(validateLookback),
		),
	).Run()
	if err != nil {
		return err
	}

	// run mode
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("RECKON CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 5: RUN MODE"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Watch interval").
				Description("Duration (e.g. 5m) for periodic reconciliation; 0s = one-shot").
				Value(&watchStr).
				Validate(func(s string) error {
					_, err := time.ParseDuration(s)
					return err
				}),
			huh.NewInput().
				Title("Web address").
				Description("Serve reports here in watch mode (e.g. :8080); empty = off").
				Value(&webAddr),
			huh.NewInput().
				Title("Journal directory").
				Description("WAL directory for report history; empty = ./wal/reports").
				Value(&journalDir),
		),
	).Run()
	if err != nil {
		return err
	}

	// confirmation
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("RECKON CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"Platform: %s\nSettlement: %s\nEpsilon: %s\nPrefer: %s\nLookback: %s days\nWatch: %s\n",
		platform, settlementStr, epsilonStr, prefer, lookbackStr, watchStr,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	cfgTmp := config.ConfigTmp{
		Platform:             platform,
		SettlementCurrencies: splitList(settlementStr),
		SharedPoolEpsilon:    epsilonStr,
		SharedPoolPrefer:     prefer,
		WebAddr:              webAddr,
		JournalDir:           journalDir,
	}
	fmt.Sscanf(lookbackStr, "%d", &cfgTmp.LookbackDays)
	if watchStr != "" && watchStr != "0s" && watchStr != "0" {
		cfgTmp.WatchInterval = watchStr
	}

	data, err := yaml.Marshal(cfgTmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	filename := "config.gen.yaml"
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s", filename)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return nil
}

func validateEpsilon(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func validateLookback(s string) error {
	var days int
	if _, err := fmt.Sscanf(s, "%d", &days); err != nil {
		return fmt.Errorf("must be a whole number")
	}
	if days < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, strings.ToUpper(trimmed))
		}
	}
	return out
}
