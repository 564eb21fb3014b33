// pipsmoke hosts — manage the remote verification host registry.
package commands

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	v1 "github.com/hacker-4-good/chroma/api/v1"
	"github.com/hacker-4-good/chroma/internal/remote"
	"github.com/hacker-4-good/chroma/pkg/netutil"
	"github.com/hacker-4-good/chroma/pkg/sshutil"
)

func NewHostsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hosts",
		Short: "Manage remote verification hosts",
		Long:  "Add, remove, list, trust, and probe the hosts the ssh runner can target.",
	}

	cmd.AddCommand(
		newHostsAddCmd(),
		newHostsRmCmd(),
		newHostsLsCmd(),
		newHostsTestCmd(),
		newHostsTrustCmd(),
	)
	return cmd
}

func newHostsAddCmd() *cobra.Command {
	var keyPath, python string
	var port int
	var yes bool

	cmd := &cobra.Command{
		Use:   "add <name> <user@host[:port]>",
		Short: "Register a remote host for the ssh runner",
		Args:  cobra.ExactArgs(2),
		Example: `  pipsmoke hosts add build-02 smoke@192.168.1.20
  pipsmoke hosts add build-03 smoke@192.168.1.21:2222
  pipsmoke hosts add arm64 ci@arm.example.com --key ~/.ssh/pipsmoke_ed25519 --python python3.11
  pipsmoke hosts add build-02 smoke@192.168.1.20 --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())
			name := args[0]
			user, hostAddr := parseUserAtHost(args[1])

			if port == 0 {
				port = remote.DefaultSSHPort
			}
			// A port in the address wins over --port.
			hostOnly, portStr, _ := netutil.SplitHostPort(hostAddr, port)
			hostAddr = hostOnly
			if p, perr := strconv.Atoi(portStr); perr == nil {
				port = p
			}
			if keyPath == "" {
				homeDir, _ := os.UserHomeDir()
				keyPath = fmt.Sprintf("%s/.ssh/id_ed25519", homeDir)
			}

			registry := remote.NewRegistry(rt.State)

			info := v1.HostInfo{
				Spec: v1.HostSpec{
					Name:   name,
					Host:   hostAddr,
					User:   user,
					Key:    keyPath,
					Port:   port,
					Python: python,
				},
			}

			// Trust-on-first-use: show the fingerprint before recording the key.
			addr := net.JoinHostPort(hostAddr, strconv.Itoa(port))
			fmt.Printf("◉ Gathering host key from %s...\n", addr)
			key, err := sshutil.GatherHostKey(addr, 10*time.Second)
			if err != nil {
				fmt.Printf("  Could not reach the host for its key: %v\n", err)
				if err := registry.Add(info); err != nil {
					return err
				}
				fmt.Printf("✓ Host %q registered untrusted (%s@%s)\n", name, user, hostAddr)
				fmt.Printf("  Run 'pipsmoke hosts trust %s' once it is reachable\n", name)
				return nil
			}

			fingerprint := sshutil.FingerprintMD5(key)
			fmt.Printf("  Fingerprint: %s\n", fingerprint)
			fmt.Printf("  Type:        %s\n", key.Type())

			if !yes {
				fmt.Print("  Trust this key? [y/N] ")
				var answer string
				fmt.Scanln(&answer)
				if answer != "y" && answer != "Y" {
					fmt.Println("Aborted.")
					return nil
				}
			}

			info.KeyFingerprint = fingerprint
			info.HostKey = sshutil.EncodeHostKey(hostAddr, key)
			info.HostKeyKnown = true

			if err := registry.Add(info); err != nil {
				return err
			}

			fmt.Printf("✓ Host %q registered and trusted (%s@%s)\n", name, user, hostAddr)
			fmt.Printf("  Run 'pipsmoke hosts test %s' to probe its interpreter\n", name)
			return nil
		},
	}

	cmd.Flags().StringVar(&keyPath, "key", "", "Path to the SSH private key")
	cmd.Flags().IntVar(&port, "port", 22, "SSH port")
	cmd.Flags().StringVar(&python, "python", "", "Remote interpreter binary (default python3)")
	cmd.Flags().BoolVar(&yes, "yes", false, "Trust the gathered host key without prompting")
	return cmd
}

func newHostsRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>",
		Short: "Remove a host from the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())
			registry := remote.NewRegistry(rt.State)
			if err := registry.Remove(args[0]); err != nil {
				return err
			}
			fmt.Printf("✓ Host %q removed\n", args[0])
			return nil
		},
	}
}

func newHostsLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List all registered hosts",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())
			registry := remote.NewRegistry(rt.State)
			hosts, err := registry.List()
			if err != nil {
				return err
			}

			if rt.Flags.JSONOutput {
				return json.NewEncoder(os.Stdout).Encode(hosts)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "NAME\tHOST\tUSER\tPYTHON\tSTATUS\tLAST SEEN\tKEY TRUSTED")
			for _, h := range hosts {
				lastSeen := "never"
				if !h.LastSeen.IsZero() {
					lastSeen = fmtSince(h.LastSeen) + " ago"
				}
				trusted := "✗"
				if h.HostKeyKnown {
					trusted = "✓"
				}
				py := h.PythonVersion
				if py == "" {
					py = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					h.Spec.Name, h.Spec.Host, h.Spec.User, py,
					hostStatusIcon(h.Status)+string(h.Status),
					lastSeen, trusted,
				)
			}
			return w.Flush()
		},
	}
}

func newHostsTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test <name>",
		Short: "Probe a host's SSH connectivity and Python interpreter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())
			registry := remote.NewRegistry(rt.State)
			info, err := registry.Get(args[0])
			if err != nil {
				return err
			}

			pool := remote.NewPool(rt.Log)
			defer pool.Close()

			python := info.Spec.Python
			if python == "" {
				python = "python3"
			}

			fmt.Printf("◉ Probing %s (%s@%s)...\n",
				info.Spec.Name, info.Spec.User, info.Spec.Host)

			out, _, err := pool.Run(cmd.Context(), info, python+" --version && uname -sr")
			if err != nil {
				_ = registry.MarkOffline(args[0], info.FailCount+1)
				return fmt.Errorf("probe failed: %w", err)
			}

			version := parsePythonVersion(out)
			if err := registry.RecordProbe(args[0], version); err != nil {
				return err
			}

			fmt.Println("✓ Host online")
			for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
				fmt.Printf("  %s\n", line)
			}
			return nil
		},
	}
}

func newHostsTrustCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trust <name>",
		Short: "Record the host key fingerprint (enables strict verification)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())
			registry := remote.NewRegistry(rt.State)

			info, err := registry.Get(args[0])
			if err != nil {
				return err
			}

			port := info.Spec.Port
			if port == 0 {
				port = remote.DefaultSSHPort
			}
			addr := net.JoinHostPort(info.Spec.Host, strconv.Itoa(port))

			fmt.Printf("◉ Gathering host key from %s...\n", addr)
			key, err := sshutil.GatherHostKey(addr, 10*time.Second)
			if err != nil {
				return fmt.Errorf("gather host key: %w", err)
			}

			fingerprint := sshutil.FingerprintMD5(key)
			encodedKey := sshutil.EncodeHostKey(info.Spec.Host, key)

			fmt.Printf("  Fingerprint: %s\n", fingerprint)
			fmt.Printf("  Type:        %s\n", key.Type())
			fmt.Print("  Trust this key? [y/N] ")

			var answer string
			fmt.Scanln(&answer)
			if answer != "y" && answer != "Y" {
				fmt.Println("Aborted.")
				return nil
			}

			if err := registry.Trust(args[0], fingerprint, encodedKey); err != nil {
				return err
			}
			fmt.Printf("✓ Host key for %q trusted\n", args[0])
			return nil
		},
	}
}

// parseUserAtHost splits "user@host" into its parts.
func parseUserAtHost(s string) (user, host string) {
	for i, c := range s {
		if c == '@' {
			return s[:i], s[i+1:]
		}
	}
	return "root", s
}

// parsePythonVersion pulls "3.11.4" out of `python3 --version` output.
func parsePythonVersion(out string) string {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Python ") {
			return strings.TrimPrefix(line, "Python ")
		}
	}
	return ""
}

func hostStatusIcon(s v1.HostStatus) string {
	switch s {
	case v1.HostOnline:
		return "● "
	case v1.HostDegraded:
		return "◐ "
	default:
		return "○ "
	}
}
