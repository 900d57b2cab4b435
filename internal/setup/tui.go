package setup

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/perpdash/config"
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
		mode       string
		wsURL      string
		restURL    string
		addr       string
		domainsStr string
		batchStr   string
		refreshStr string
		confirm    bool
	)

	// defaults
	wsURL = config.DefaultWSURL
	restURL = config.DefaultRestURL
	addr = config.DefaultDashboardAddr
	batchStr = config.DefaultBatchInterval.String()
	refreshStr = config.DefaultTokenRefreshInterval.String()

	// step 1: welcome
	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("PERPDASH CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Live account dashboard in a few answers.\n"))

	fmt.Println(stepStyle.Render("STEP 1: MODE"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Data source").
				Options(
					huh.NewOption("Live venue (wallet-authenticated)", "live"),
					huh.NewOption("Simulation (local synthetic venue)", "simulate"),
				).
				Value(&mode),
		),
	).Run()
	if err != nil {
		return err
	}

	if mode == "live" {
		fmt.Print("\033[H\033[2J")
		fmt.Println(headerStyle.Render("PERPDASH CONFIG WIZARD"))
		fmt.Println(stepStyle.Render("STEP 2: VENUE"))
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("WebSocket URL").
					Description("The venue account feed, wss://...").
					Value(&wsURL).
					Validate(validateWSURL),
				huh.NewInput().
					Title("REST API URL").
					Description("Used for auth and state bootstrap").
					Value(&restURL).
					Validate(validateHTTPURL),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("PERPDASH CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: DASHBOARD"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Listen Address").
				Description("host:port for the web dashboard (e.g. :8080)").
				Value(&addr),
			huh.NewInput().
				Title("TLS Domains").
				Description("Comma-separated domains for automatic HTTPS, empty for plain HTTP").
				Value(&domainsStr),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("PERPDASH CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 4: TIMING"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("UI Update Interval").
				Description("How often batched state reaches the browser (e.g. 100ms)").
				Value(&batchStr).
				Validate(validateDuration),
			huh.NewInput().
				Title("Token Refresh Interval").
				Description("How often the auth token is renewed (e.g. 8m)").
				Value(&refreshStr).
				Validate(validateDuration),
		),
	).Run()
	if err != nil {
		return err
	}

	// confirmation
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("PERPDASH CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"Mode: %s\nWebSocket: %s\nREST: %s\nDashboard: %s\nUpdate interval: %s\n",
		mode, wsURL, restURL, addr, batchStr,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
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

	batchInterval, _ := time.ParseDuration(batchStr)
	refreshInterval, _ := time.ParseDuration(refreshStr)

	cfgTmp := config.ConfigTmp{
		WSURL:                wsURL,
		RestURL:              restURL,
		DashboardAddr:        addr,
		BatchInterval:        batchInterval,
		TokenRefreshInterval: refreshInterval,
		Simulate:             mode == "simulate",
	}
	if domainsStr != "" {
		for _, d := range strings.Split(domainsStr, ",") {
			if d = strings.TrimSpace(d); d != "" {
				cfgTmp.TLSDomains = append(cfgTmp.TLSDomains, d)
			}
		}
	}

	data, err := yaml.Marshal(cfgTmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	filename := "config.gen.yaml"
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting dashboard...", filename)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return nil
}

func validateWSURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("not a valid url")
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("scheme must be ws or wss")
	}
	return nil
}

func validateHTTPURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("not a valid url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	return nil
}

func validateDuration(s string) error {
	_, err := time.ParseDuration(s)
	return err
}
