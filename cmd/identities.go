package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kozaktomas/facemood/internal/config"
	"github.com/kozaktomas/facemood/internal/facematch"
	"github.com/spf13/cobra"
)

var identitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "List and maintain enrolled people",
}

var identitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled people",
	Long: `List enrolled people in enrollment order.

Examples:
  facemood identities list
  facemood identities list --name gomez
  facemood identities list --json`,
	Args: cobra.NoArgs,
	RunE: runIdentitiesList,
}

var identitiesDeleteCmd = &cobra.Command{
	Use:   "delete <identity-id>",
	Short: "Delete an enrolled person and their detection history",
	Args:  cobra.ExactArgs(1),
	RunE:  runIdentitiesDelete,
}

func init() {
	rootCmd.AddCommand(identitiesCmd)
	identitiesCmd.AddCommand(identitiesListCmd)
	identitiesCmd.AddCommand(identitiesDeleteCmd)

	identitiesListCmd.Flags().String("name", "", "Filter by name (case and diacritics insensitive)")
	identitiesListCmd.Flags().Bool("json", false, "Output as JSON")

	identitiesDeleteCmd.Flags().BoolP("yes", "y", false, "Skip confirmation prompt")
}

// IdentityListItem is one row of the identities list
type IdentityListItem struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Surname   string `json:"surname"`
	Contact   string `json:"contact"`
	CreatedAt string `json:"created_at"`
}

func runIdentitiesList(cmd *cobra.Command, args []string) error {
	nameFilter := facematch.NormalizePersonName(mustGetString(cmd, "name"))
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	cfg := config.Load()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	identities, err := store.ListIdentities(ctx)
	if err != nil {
		return err
	}

	items := make([]IdentityListItem, 0, len(identities))
	for _, identity := range identities {
		if nameFilter != "" && !strings.Contains(facematch.NormalizePersonName(identity.Label()), nameFilter) {
			continue
		}
		items = append(items, IdentityListItem{
			ID:        identity.ID,
			Name:      identity.Name,
			Surname:   identity.Surname,
			Contact:   identity.Contact,
			CreatedAt: identity.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	if jsonOutput {
		return outputJSON(items)
	}
	if len(items) == 0 {
		fmt.Println("No identities found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSURNAME\tCONTACT\tENROLLED")
	fmt.Fprintln(w, "--\t----\t-------\t-------\t--------")
	for _, item := range items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", item.ID, item.Name, item.Surname, item.Contact, item.CreatedAt)
	}
	return w.Flush()
}

func runIdentitiesDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid identity id %q", args[0])
	}
	skipConfirm := mustGetBool(cmd, "yes")

	ctx := context.Background()
	cfg := config.Load()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	identity, err := store.GetIdentity(ctx, id)
	if err != nil {
		return err
	}

	if !skipConfirm {
		prompt := fmt.Sprintf("Delete %s <%s> and all of their detections? [y/N]: ", identity.Label(), identity.Contact)
		if !confirmAction(prompt) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := store.DeleteIdentity(ctx, id); err != nil {
		return err
	}
	fmt.Printf("Deleted identity %d (%s)\n", id, identity.Label())
	return nil
}
