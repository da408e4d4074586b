// ABOUTME: Admin CLI for the mycastle gateway
// ABOUTME: Mints and inspects tokens, pings the gateway, lists capabilities and audit entries

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/jojopeligroso/MyCastle-sub007/internal/auth"
	"github.com/jojopeligroso/MyCastle-sub007/internal/config"
	"github.com/jojopeligroso/MyCastle-sub007/internal/protocol"
	"github.com/jojopeligroso/MyCastle-sub007/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "token":
		err = cmdToken(args)
	case "ping":
		err = cmdPing()
	case "capabilities":
		err = cmdCapabilities()
	case "audit":
		err = cmdAudit(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	yellow := color.New(color.FgYellow)

	fmt.Println("Usage: mycastle-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  token create            Mint a JWT for an actor")
	fmt.Println("  token inspect <token>   Verify a token and show its identity")
	fmt.Println("  ping                    Check that the gateway answers")
	fmt.Println("  capabilities            List capabilities visible to your token")
	fmt.Println("  audit [--limit n]       Show recent audit log entries")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  MYCASTLE_CONFIG          Config file path (default: config.yaml)")
	fmt.Println("  MYCASTLE_JWT_SECRET      Signing secret (overrides config)")
	fmt.Println("  MYCASTLE_TOKEN           JWT used for gateway calls")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  mycastle-admin token create --actor reception@school --role admin_reception")
	fmt.Println("  export MYCASTLE_TOKEN=\"eyJhbG...\"")
	fmt.Println("  mycastle-admin capabilities")
}

func loadConfig() (*config.Config, error) {
	path := os.Getenv("MYCASTLE_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	return config.Load(path)
}

// jwtSecret resolves the signing secret from the environment or config.
func jwtSecret() ([]byte, error) {
	if secret := os.Getenv("MYCASTLE_JWT_SECRET"); secret != "" {
		return []byte(secret), nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("no MYCASTLE_JWT_SECRET set and config unavailable: %w", err)
	}
	return []byte(cfg.Auth.JWTSecret), nil
}

func cmdToken(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: token <create|inspect>")
	}
	switch args[0] {
	case "create":
		return cmdTokenCreate(args[1:])
	case "inspect":
		if len(args) < 2 {
			return fmt.Errorf("usage: token inspect <token>")
		}
		return cmdTokenInspect(args[1])
	default:
		return fmt.Errorf("unknown token subcommand: %s", args[0])
	}
}

func cmdTokenCreate(args []string) error {
	fs := flag.NewFlagSet("token create", flag.ContinueOnError)
	actor := fs.String("actor", "", "actor id (required)")
	role := fs.String("role", "", "actor role (required)")
	scopes := fs.String("scopes", "", "comma-separated scopes (default: role defaults)")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *actor == "" || *role == "" {
		return fmt.Errorf("--actor and --role are required")
	}

	secret, err := jwtSecret()
	if err != nil {
		return err
	}

	var scopeList []string
	if *scopes != "" {
		for _, s := range strings.Split(*scopes, ",") {
			if s = strings.TrimSpace(s); s != "" {
				scopeList = append(scopeList, s)
			}
		}
	}

	verifier := auth.NewJWTVerifier(secret)
	token, err := verifier.Generate(*actor, auth.Role(*role), scopeList, *ttl)
	if err != nil {
		return fmt.Errorf("minting token: %w", err)
	}

	color.Green("Token for %s (%s), valid %s:", *actor, *role, *ttl)
	fmt.Println(token)
	return nil
}

func cmdTokenInspect(token string) error {
	secret, err := jwtSecret()
	if err != nil {
		return err
	}

	ident, err := auth.NewJWTVerifier(secret).Verify(token)
	if err != nil {
		return fmt.Errorf("token invalid: %w", err)
	}

	color.Green("Token valid")
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Actor:\t%s\n", ident.Actor)
	fmt.Fprintf(w, "Role:\t%s\n", ident.Role)
	fmt.Fprintf(w, "Scopes:\t%s\n", strings.Join(ident.Scopes, ", "))
	return w.Flush()
}

// callGateway posts one envelope to the gateway's /rpc endpoint.
func callGateway(method string, params any) (*protocol.Response, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Server.HTTPAddr == "" {
		return nil, fmt.Errorf("gateway is not configured for HTTP")
	}

	envelope := map[string]any{"id": 1, "method": method}
	if params != nil {
		envelope["params"] = params
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	url := fmt.Sprintf("http://%s/rpc", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := os.Getenv("MYCASTLE_TOKEN"); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling gateway: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var decoded protocol.Response
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decoding gateway response: %w", err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("gateway error %d: %s", decoded.Error.Code, decoded.Error.Message)
	}
	return &decoded, nil
}

func cmdPing() error {
	resp, err := callGateway("system:ping", nil)
	if err != nil {
		return err
	}

	data, _ := json.MarshalIndent(resp.Result, "", "  ")
	color.Green("Gateway is up")
	fmt.Println(string(data))
	return nil
}

func cmdCapabilities() error {
	resp, err := callGateway("system:capabilities", nil)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(resp.Result)
	if err != nil {
		return err
	}
	var decoded struct {
		Tools []struct {
			Name           string   `json:"name"`
			Description    string   `json:"description"`
			RequiredScopes []string `json:"required_scopes"`
			Mutating       bool     `json:"mutating"`
		} `json:"tools"`
		Resources []struct {
			URI         string `json:"uri"`
			Description string `json:"description"`
		} `json:"resources"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}

	yellow := color.New(color.FgYellow)
	yellow.Println("Tools:")
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, tool := range decoded.Tools {
		mark := ""
		if tool.Mutating {
			mark = " [mutating]"
		}
		fmt.Fprintf(w, "  %s%s\t%s\t%s\n", tool.Name, mark, strings.Join(tool.RequiredScopes, ","), tool.Description)
	}
	w.Flush()

	fmt.Println()
	yellow.Println("Resources:")
	w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, res := range decoded.Resources {
		fmt.Fprintf(w, "  %s\t%s\n", res.URI, res.Description)
	}
	return w.Flush()
}

func cmdAudit(args []string) error {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max entries to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	entries, err := st.ListAudit(context.Background(), *limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No audit entries.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTOR\tROLE\tMETHOD")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.Actor, e.Role, e.Method)
	}
	return w.Flush()
}
