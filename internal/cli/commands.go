// Package cli implements folioctl, a thin client over the REST API.
package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"folio/internal/models"
)

type Context struct {
	APIBase string
	Token   string
	Output  Format
	Out     io.Writer
}

func (ctx Context) client() *Client {
	return &Client{BaseURL: ctx.APIBase, Token: ctx.Token}
}

func (ctx Context) out() io.Writer {
	if ctx.Out == nil {
		return os.Stdout
	}
	return ctx.Out
}

func Usage(w io.Writer) {
	fmt.Fprint(w, `folioctl <command> [flags]

Global Flags:
  --api-base    API base URL (env: FOLIO_API_BASE)
  --token       Bearer token (env: FOLIO_TOKEN)
  --output      json|text (default text)

Commands:
  register   --email --name --password
  login      --email --password
  portfolios list | create --name [--cash] | show <id>
  buy        <portfolio> --symbol --quantity [--price] [--name] [--type]
  sell       <portfolio> <holding> --quantity [--price]
  revalue    <portfolio>
  deposit    <portfolio> --amount
  withdraw   <portfolio> --amount
  history    <portfolio>
  rebalance  <portfolio> SYMBOL=weight ...
  quote      <symbol>
`)
}

func Dispatch(ctx Context, args []string) error {
	if len(args) == 0 {
		Usage(os.Stderr)
		return errors.New("missing command")
	}
	switch args[0] {
	case "register":
		return registerCmd(ctx, args[1:])
	case "login":
		return loginCmd(ctx, args[1:])
	case "portfolios":
		return portfoliosCmd(ctx, args[1:])
	case "buy":
		return buyCmd(ctx, args[1:])
	case "sell":
		return sellCmd(ctx, args[1:])
	case "revalue":
		return revalueCmd(ctx, args[1:])
	case "deposit", "withdraw":
		return cashCmd(ctx, args[0], args[1:])
	case "history":
		return historyCmd(ctx, args[1:])
	case "rebalance":
		return rebalanceCmd(ctx, args[1:])
	case "quote":
		return quoteCmd(ctx, args[1:])
	case "help", "-h", "--help":
		Usage(ctx.out())
		return nil
	default:
		Usage(os.Stderr)
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

type session struct {
	User      models.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt string      `json:"expiresAt"`
}

func registerCmd(ctx Context, args []string) error {
	fs := flag.NewFlagSet("folioctl register", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	email := fs.String("email", "", "Email")
	name := fs.String("name", "", "Display name")
	password := fs.String("password", "", "Password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" || *password == "" {
		return errors.New("usage: folioctl register --email <e> --name <n> --password <p>")
	}
	return authenticate(ctx, "/api/v1/auth/register", map[string]any{
		"email":    strings.TrimSpace(*email),
		"name":     strings.TrimSpace(*name),
		"password": *password,
	})
}

func loginCmd(ctx Context, args []string) error {
	fs := flag.NewFlagSet("folioctl login", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	email := fs.String("email", "", "Email")
	password := fs.String("password", "", "Password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" || *password == "" {
		return errors.New("usage: folioctl login --email <e> --password <p>")
	}
	return authenticate(ctx, "/api/v1/auth/login", map[string]any{
		"email":    strings.TrimSpace(*email),
		"password": *password,
	})
}

func authenticate(ctx Context, path string, payload map[string]any) error {
	var resp session
	if err := ctx.client().Call("POST", path, payload, &resp); err != nil {
		return err
	}
	if err := SaveCredentials(Credentials{APIBase: ctx.APIBase, Token: resp.Token, ExpiresAt: resp.ExpiresAt}); err != nil {
		fmt.Fprintln(os.Stderr, "warning: credentials not saved:", err)
	}
	return Write(ctx.out(), ctx.Output, resp)
}

type portfolioTable []models.Portfolio

func (t portfolioTable) Header() []string {
	return []string{"ID", "NAME", "CASH", "TOTAL VALUE"}
}

func (t portfolioTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, p := range t {
		rows = append(rows, []string{strconv.FormatUint(p.ID, 10), p.Name, formatMoney(p.Cash), formatMoney(p.TotalValue)})
	}
	return rows
}

type holdingTable []models.Holding

func (t holdingTable) Header() []string {
	return []string{"ID", "SYMBOL", "QUANTITY", "AVG PRICE", "PRICE", "VALUE"}
}

func (t holdingTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, h := range t {
		rows = append(rows, []string{
			strconv.FormatUint(h.ID, 10), h.Symbol, h.Quantity.String(),
			formatMoney(h.AvgPrice), formatMoney(h.CurrentPrice), formatMoney(h.MarketValue()),
		})
	}
	return rows
}

func portfoliosCmd(ctx Context, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}
	c := ctx.client()
	switch sub {
	case "list":
		var items []models.Portfolio
		if err := c.Call("GET", "/api/v1/portfolios", nil, &items); err != nil {
			return err
		}
		return Write(ctx.out(), ctx.Output, portfolioTable(items))
	case "create":
		fs := flag.NewFlagSet("folioctl portfolios create", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		name := fs.String("name", "", "Portfolio name")
		desc := fs.String("description", "", "Description")
		cash := fs.String("cash", "0", "Opening cash")
		if err := fs.Parse(args); err != nil {
			return err
		}
		amount, err := decimal.NewFromString(*cash)
		if err != nil {
			return fmt.Errorf("invalid --cash: %w", err)
		}
		var p models.Portfolio
		if err := c.Call("POST", "/api/v1/portfolios", map[string]any{"name": *name, "description": *desc, "cash": amount}, &p); err != nil {
			return err
		}
		return Write(ctx.out(), ctx.Output, portfolioTable{p})
	case "show":
		id, err := idArg(args, "portfolio")
		if err != nil {
			return err
		}
		var p models.Portfolio
		if err := c.Call("GET", fmt.Sprintf("/api/v1/portfolios/%d", id), nil, &p); err != nil {
			return err
		}
		if ctx.Output == FormatText {
			if err := Write(ctx.out(), ctx.Output, portfolioTable{p}); err != nil {
				return err
			}
			fmt.Fprintln(ctx.out())
			return Write(ctx.out(), ctx.Output, holdingTable(p.Holdings))
		}
		return Write(ctx.out(), ctx.Output, p)
	default:
		return fmt.Errorf("unknown portfolios subcommand: %s", sub)
	}
}

func buyCmd(ctx Context, args []string) error {
	id, err := idArg(args, "portfolio")
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("folioctl buy", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	symbol := fs.String("symbol", "", "Ticker")
	name := fs.String("name", "", "Asset name")
	assetType := fs.String("type", models.AssetTypeStock, "Asset type")
	quantity := fs.String("quantity", "", "Quantity")
	price := fs.String("price", "", "Explicit price; omitted uses the current quote")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	body := map[string]any{"symbol": *symbol, "name": *name, "assetType": *assetType, "quantity": *quantity}
	if *price != "" {
		body["price"] = *price
	}
	var resp any
	if err := ctx.client().Call("POST", fmt.Sprintf("/api/v1/portfolios/%d/buy", id), body, &resp); err != nil {
		return err
	}
	return Write(ctx.out(), ctx.Output, resp)
}

func sellCmd(ctx Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: folioctl sell <portfolio> <holding> --quantity <q> [--price <p>]")
	}
	pid, err := idArg(args, "portfolio")
	if err != nil {
		return err
	}
	hid, err := idArg(args[1:], "holding")
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("folioctl sell", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	quantity := fs.String("quantity", "", "Quantity")
	price := fs.String("price", "", "Explicit price")
	if err := fs.Parse(args[2:]); err != nil {
		return err
	}
	body := map[string]any{"quantity": *quantity}
	if *price != "" {
		body["price"] = *price
	}
	var resp any
	if err := ctx.client().Call("POST", fmt.Sprintf("/api/v1/portfolios/%d/assets/%d/sell", pid, hid), body, &resp); err != nil {
		return err
	}
	return Write(ctx.out(), ctx.Output, resp)
}

func revalueCmd(ctx Context, args []string) error {
	id, err := idArg(args, "portfolio")
	if err != nil {
		return err
	}
	var resp struct {
		Portfolio models.Portfolio `json:"portfolio"`
		Holdings  []models.Holding `json:"holdings"`
		Skipped   []string         `json:"skipped"`
	}
	if err := ctx.client().Call("PUT", fmt.Sprintf("/api/v1/portfolios/%d/update-prices", id), nil, &resp); err != nil {
		return err
	}
	if ctx.Output != FormatText {
		return Write(ctx.out(), ctx.Output, resp)
	}
	if err := Write(ctx.out(), ctx.Output, holdingTable(resp.Holdings)); err != nil {
		return err
	}
	fmt.Fprintf(ctx.out(), "\ntotal value %s\n", formatMoney(resp.Portfolio.TotalValue))
	if len(resp.Skipped) > 0 {
		fmt.Fprintf(ctx.out(), "skipped: %s\n", strings.Join(resp.Skipped, ", "))
	}
	return nil
}

func cashCmd(ctx Context, op string, args []string) error {
	id, err := idArg(args, "portfolio")
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("folioctl "+op, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	amount := fs.String("amount", "", "Amount")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	var resp any
	if err := ctx.client().Call("POST", fmt.Sprintf("/api/v1/portfolios/%d/%s", id, op), map[string]any{"amount": *amount}, &resp); err != nil {
		return err
	}
	return Write(ctx.out(), ctx.Output, resp)
}

func historyCmd(ctx Context, args []string) error {
	id, err := idArg(args, "portfolio")
	if err != nil {
		return err
	}
	var resp []models.PortfolioSnapshot
	if err := ctx.client().Call("GET", fmt.Sprintf("/api/v1/portfolios/%d/history", id), nil, &resp); err != nil {
		return err
	}
	return Write(ctx.out(), ctx.Output, resp)
}

func rebalanceCmd(ctx Context, args []string) error {
	id, err := idArg(args, "portfolio")
	if err != nil {
		return err
	}
	targets, err := parseTargets(args[1:])
	if err != nil {
		return err
	}
	var resp any
	if err := ctx.client().Call("POST", fmt.Sprintf("/api/v1/portfolios/%d/rebalance", id), map[string]any{"targets": targets}, &resp); err != nil {
		return err
	}
	return Write(ctx.out(), ctx.Output, resp)
}

func quoteCmd(ctx Context, args []string) error {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return errors.New("usage: folioctl quote <symbol>")
	}
	var q models.MarketQuote
	if err := ctx.client().Call("GET", "/api/v1/market/quotes/"+strings.ToUpper(strings.TrimSpace(args[0])), nil, &q); err != nil {
		return err
	}
	return Write(ctx.out(), ctx.Output, q)
}

func idArg(args []string, what string) (uint64, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%s id required", what)
	}
	id, err := strconv.ParseUint(strings.TrimSpace(args[0]), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s id: %q", what, args[0])
	}
	return id, nil
}

// parseTargets reads SYMBOL=weight pairs.
func parseTargets(args []string) (map[string]decimal.Decimal, error) {
	if len(args) == 0 {
		return nil, errors.New("at least one SYMBOL=weight target is required")
	}
	out := make(map[string]decimal.Decimal, len(args))
	for _, a := range args {
		sym, w, ok := strings.Cut(a, "=")
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if !ok || sym == "" {
			return nil, fmt.Errorf("invalid target %q, want SYMBOL=weight", a)
		}
		weight, err := decimal.NewFromString(strings.TrimSpace(w))
		if err != nil {
			return nil, fmt.Errorf("invalid weight for %s: %w", sym, err)
		}
		out[sym] = weight
	}
	return out, nil
}
