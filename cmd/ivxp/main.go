// Command ivxp is a small client for IVXP providers: browse the catalog,
// request a quote, submit payment proof and retrieve deliverables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/moltbook/ivxp/client"
)

const usage = `Usage: ivxp <command> [flags]

Commands:
  catalog   list the provider's services
  request   request a service quote
  deliver   submit payment proof for an order
  status    show order status
  download  download the deliverable

Environment:
  WALLET_ADDRESS      client wallet address
  WALLET_PRIVATE_KEY  hex private key, required for deliver
  RECEIVE_ENDPOINT    optional push delivery endpoint
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "ivxp: %v\n", err)
		os.Exit(1)
	}
}

func run(command string, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch command {
	case "catalog":
		return runCatalog(ctx, args)
	case "request":
		return runRequest(ctx, args)
	case "deliver":
		return runDeliver(ctx, args)
	case "status":
		return runStatus(ctx, args)
	case "download":
		return runDownload(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func newClient(fs *flag.FlagSet, args []string) (*client.Client, error) {
	providerURL := fs.String("p", "http://localhost:8080", "provider URL")
	agentName := fs.String("n", "ivxp-cli", "client agent name")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return client.New(*providerURL, client.Config{
		AgentName:       *agentName,
		WalletAddress:   os.Getenv("WALLET_ADDRESS"),
		PrivateKeyHex:   os.Getenv("WALLET_PRIVATE_KEY"),
		ReceiveEndpoint: os.Getenv("RECEIVE_ENDPOINT"),
	})
}

func runCatalog(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("catalog", flag.ExitOnError)
	c, err := newClient(fs, args)
	if err != nil {
		return err
	}

	catalog, err := c.Catalog(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Provider: %s (%s)\n", catalog.Provider, catalog.WalletAddress)
	for _, s := range catalog.Services {
		fmt.Printf("  %-14s %6.2f USDC  ~%.0fh\n", s.Type, s.BasePriceUSDC, s.EstimatedDeliveryHours)
	}
	return nil
}

func runRequest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("request", flag.ExitOnError)
	serviceType := fs.String("t", "", "service type")
	description := fs.String("d", "", "service description")
	budget := fs.Float64("b", 0, "budget in USDC")

	c, err := newClient(fs, args)
	if err != nil {
		return err
	}
	if *serviceType == "" {
		return errors.New("service type is required (-t)")
	}

	quote, err := c.RequestService(ctx, client.ServiceRequest{
		Type:        *serviceType,
		Description: *description,
		BudgetUSDC:  *budget,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Order:    %s\n", quote.OrderID)
	fmt.Printf("Price:    %.2f USDC\n", quote.PriceUSDC)
	fmt.Printf("Pay to:   %s (%s)\n", quote.PaymentAddress, quote.Network)
	fmt.Printf("Delivery: %s\n", quote.EstimatedDelivery)
	return nil
}

func runDeliver(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("deliver", flag.ExitOnError)
	orderID := fs.String("o", "", "order id")
	txHash := fs.String("x", "", "payment transaction hash")
	network := fs.String("net", "base-mainnet", "payment network")

	c, err := newClient(fs, args)
	if err != nil {
		return err
	}
	if *orderID == "" || *txHash == "" {
		return errors.New("order id (-o) and transaction hash (-x) are required")
	}

	accepted, err := c.RequestDelivery(ctx, *orderID, *txHash, *network)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %s\n", accepted.Status, accepted.Message)
	return nil
}

func runStatus(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	orderID := fs.String("o", "", "order id")

	c, err := newClient(fs, args)
	if err != nil {
		return err
	}
	if *orderID == "" {
		return errors.New("order id is required (-o)")
	}

	status, err := c.Status(ctx, *orderID)
	if err != nil {
		return err
	}

	fmt.Printf("Order:   %s\n", status.OrderID)
	fmt.Printf("Status:  %s\n", status.Status)
	fmt.Printf("Service: %s\n", status.ServiceType)
	fmt.Printf("Price:   %.2f USDC\n", status.PriceUSDC)
	if status.ContentHash != "" {
		fmt.Printf("Hash:    %s\n", status.ContentHash)
	}
	return nil
}

func runDownload(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	orderID := fs.String("o", "", "order id")
	wait := fs.Bool("wait", false, "poll until the deliverable is ready")

	c, err := newClient(fs, args)
	if err != nil {
		return err
	}
	if *orderID == "" {
		return errors.New("order id is required (-o)")
	}

	var delivery *client.Delivery
	if *wait {
		delivery, err = c.AwaitDelivery(ctx, *orderID, 5*time.Second, 60)
	} else {
		delivery, err = c.Download(ctx, *orderID)
	}
	if errors.Is(err, client.ErrNotReady) {
		return errors.New("deliverable is not ready yet, try again later or use -wait")
	}
	if err != nil {
		return err
	}

	fmt.Println(delivery.Deliverable.Content)
	return nil
}
