package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/storyglot/authz/internal/adapter/outbound/sqlite"
	"github.com/storyglot/authz/internal/config"
	"github.com/storyglot/authz/internal/domain/policy"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage tenant resource policies",
	Long: `Import or list tenant resource policies in the configured store.

These commands operate directly on the sqlite policy store; they are the
provisioning path for deployments without the admin back office.`,
}

var policyImportCmd = &cobra.Command{
	Use:   "import [bundle.yaml]",
	Short: "Import a YAML policy bundle",
	Long: `Import policies from a YAML bundle into the configured store.

The bundle is a YAML document with a top-level "policies" list. Policies
without an id get a generated one. Existing policies with the same id are
replaced.

Example bundle:
  policies:
    - resource: Story
      effect: deny
      priority: 10
      tenantId: tenant-1
      active: true
      conditions:
        tenantId: "${ctx.tenantId}"`,
	Args: cobra.ExactArgs(1),
	RunE: runPolicyImport,
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List policies in the configured store",
	RunE:  runPolicyList,
}

func init() {
	policyCmd.AddCommand(policyImportCmd)
	policyCmd.AddCommand(policyListCmd)
	rootCmd.AddCommand(policyCmd)
}

// policyBundle is the YAML shape accepted by policy import.
type policyBundle struct {
	Policies []policy.ResourcePolicy `yaml:"policies"`
}

// openAdminStore opens the configured policy store for admin operations.
// Only the sqlite driver persists across processes.
func openAdminStore() (policy.AdminStore, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.PolicyStore.Driver != "sqlite" {
		return nil, nil, errors.New("policy commands require policy_store.driver: sqlite")
	}

	store, err := sqlite.Open(cfg.PolicyStore.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open policy store: %w", err)
	}
	return store, func() { _ = store.Close() }, nil
}

func runPolicyImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read bundle: %w", err)
	}

	var bundle policyBundle
	if err := yaml.Unmarshal(data, &bundle); err != nil {
		return fmt.Errorf("parse bundle: %w", err)
	}
	if len(bundle.Policies) == 0 {
		return errors.New("bundle contains no policies")
	}

	store, closeStore, err := openAdminStore()
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := context.Background()
	for i := range bundle.Policies {
		p := &bundle.Policies[i]
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		if p.Resource == "" {
			return fmt.Errorf("policies[%d]: resource is required", i)
		}
		if p.Effect != policy.EffectAllow && p.Effect != policy.EffectDeny {
			return fmt.Errorf("policies[%d]: effect must be allow or deny, got %q", i, p.Effect)
		}
		if err := store.Save(ctx, p); err != nil {
			return fmt.Errorf("save policy %s: %w", p.ID, err)
		}
	}

	fmt.Printf("imported %d policies\n", len(bundle.Policies))
	return nil
}

func runPolicyList(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openAdminStore()
	if err != nil {
		return err
	}
	defer closeStore()

	policies, err := store.List(context.Background())
	if err != nil {
		return fmt.Errorf("list policies: %w", err)
	}
	if len(policies) == 0 {
		fmt.Println("no policies")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tRESOURCE\tEFFECT\tPRIORITY\tTENANT\tACTIVE")
	for _, p := range policies {
		tenant := "global"
		if p.TenantID != nil {
			tenant = *p.TenantID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%t\n",
			p.ID, p.Resource, p.Effect, p.Priority, tenant, p.Active)
	}
	return w.Flush()
}
