package main

import (
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/harvester/internal/config"
	"github.com/nao1215/harvester/internal/proxy"
)

// NewProxiesCmd creates the proxies command.
func NewProxiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxies",
		Short: "List configured egress proxies and their health",
		Long: `Proxies lists the egress proxy pool from the configuration file.

With --check, each proxy endpoint is probed with a TCP dial and the
result is shown next to the address. A failed probe does not remove the
proxy from the configuration; it only reports current reachability.

Examples:
  # List proxies from the default .harvester config
  harvester proxies

  # Probe reachability with a 5 second dial timeout
  harvester proxies --check

  # Use a specific configuration file
  harvester proxies -c myconfig.yaml --check`,
		RunE: runProxiesCmd,
	}

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .harvester in current or home directory)")
	cmd.Flags().Bool("check", false,
		"Probe each proxy endpoint with a TCP dial")
	cmd.Flags().Duration("dial-timeout", 5*time.Second,
		"Timeout for each reachability probe")

	return cmd
}

// runProxiesCmd executes the proxies command.
func runProxiesCmd(cmd *cobra.Command, _ []string) error {
	configFlag, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	check, err := cmd.Flags().GetBool("check")
	if err != nil {
		return err
	}

	dialTimeout, err := cmd.Flags().GetDuration("dial-timeout")
	if err != nil {
		return err
	}

	configPath := config.FindConfigFile(configFlag)
	if configPath == "" {
		if configFlag != "" {
			return fmt.Errorf("configuration file not found: %s", configFlag)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No configuration file found; no proxies configured.")
		return nil
	}

	fileConfig, err := config.LoadConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}

	proxies := fileConfig.RequestProxies()
	if len(proxies) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No proxies configured.")
		return nil
	}

	regions := make(map[string]string)
	for _, entry := range fileConfig.Proxies {
		if entry.Region != "" {
			regions[entry.Address] = entry.Region
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Proxies from %s:\n\n", configPath)
	for _, p := range proxies {
		line := fmt.Sprintf("  %s", p.Address)
		if region, ok := regions[p.Address]; ok {
			line += fmt.Sprintf(" [region: %s]", region)
		}
		if p.Ignore != proxy.IgnoreNone {
			line += fmt.Sprintf(" [ignore: %s]", p.Ignore)
		}
		if check {
			if err := probeProxy(p.Address, dialTimeout); err != nil {
				line += fmt.Sprintf("  UNREACHABLE (%v)", err)
			} else {
				line += "  OK"
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}

	return nil
}

// probeProxy dials the proxy's TCP endpoint to check reachability.
// The address may be a URL (socks5://host:port) or a bare host:port.
func probeProxy(address string, timeout time.Duration) error {
	host := address
	if u, err := url.Parse(address); err == nil && u.Host != "" {
		host = u.Host
	}
	if _, _, err := net.SplitHostPort(host); err != nil {
		return fmt.Errorf("invalid proxy address %q: %w", address, err)
	}

	conn, err := net.DialTimeout("tcp", host, timeout)
	if err != nil {
		return err
	}
	return conn.Close()
}
