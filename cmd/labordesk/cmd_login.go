package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/labordesk/internal/credential"
	"github.com/nhle/labordesk/internal/model"
)

var loginLogout bool

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Save the backend address, viewer role and API token",
	Long: `Prompts for the backend base URL, the viewer role and the API token.
The URL and role are written to the config file; the token is stored in the
system keyring.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().BoolVar(&loginLogout, "logout", false, "remove the stored token")
}

func runLogin(cmd *cobra.Command, args []string) error {
	if loginLogout {
		err := credential.Delete(credential.TokenKey)
		if err != nil && !errors.Is(err, credential.ErrNotFound) {
			return err
		}
		fmt.Fprintln(os.Stdout, "Token removed.")
		return nil
	}

	baseURL := cfg.Backend.BaseURL
	role := cfg.Backend.Role
	var token string

	roleOptions := make([]huh.Option[string], 0, len(cfg.Feed.Roles)+1)
	roleOptions = append(roleOptions, huh.NewOption("(none)", ""))
	for _, r := range cfg.Feed.Roles {
		roleOptions = append(roleOptions, huh.NewOption(r, r))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Backend URL").
				Value(&baseURL).
				Validate(validateBaseURL),
			huh.NewSelect[string]().
				Title("Viewer role").
				Options(roleOptions...).
				Value(&role),
			huh.NewInput().
				Title("API token").
				Description("Leave empty to keep the stored token.").
				EchoMode(huh.EchoModePassword).
				Value(&token),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	cfg.Backend.BaseURL = strings.TrimRight(baseURL, "/")
	cfg.Backend.Role = role
	ws, err := model.DeriveWSURL(cfg.Backend.BaseURL)
	if err != nil {
		return err
	}
	cfg.Backend.WSURL = ws

	if err := model.SaveConfig(configPath, cfg); err != nil {
		return err
	}
	if token != "" {
		if err := credential.Set(credential.TokenKey, token); err != nil {
			return err
		}
	}

	fmt.Fprintf(os.Stdout, "Saved %s\n", configPath)
	return nil
}

func validateBaseURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("enter an http(s) URL")
	}
	return nil
}
