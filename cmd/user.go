package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	lakeaws "github.com/nicholasgasior/lakegate/internal/aws"
	"github.com/nicholasgasior/lakegate/internal/cli"
	"github.com/nicholasgasior/lakegate/internal/transfer"
)

func newUserCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage SFTP users on a transfer server",
	}
	cmd.AddCommand(newUserAddCommand())
	return cmd
}

// userAddDeps holds the injectable dependencies for user add.
type userAddDeps struct {
	createUser lakeaws.CreateUserAPI
	stored     string

	// readFile reads the public key file. Defaults to os.ReadFile.
	readFile func(path string) ([]byte, error)
}

func newUserAddCommand() *cobra.Command {
	return newUserAddCommandWithDeps(nil)
}

// newUserAddCommandWithDeps creates the command with explicit dependencies
// for testing.
func newUserAddCommandWithDeps(deps *userAddDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Register an SFTP user with a logical home directory",
		Long: "Register an SFTP user on a transfer server. The user's home " +
			"directory is a logical mapping into the given bucket; additional " +
			"mappings can be supplied with --map. The server defaults to the one " +
			"recorded by the last \"lakegate server create\".",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps != nil {
				return runUserAdd(cmd, args[0], deps)
			}
			clients := awsClientsFromContext(cmd.Context())
			if clients == nil {
				return fmt.Errorf("AWS clients not configured")
			}
			stored := ""
			if clients.lakegateConfig != nil {
				stored = clients.lakegateConfig.ServerID
			}
			start := time.Now()
			err := runUserAdd(cmd, args[0], &userAddDeps{
				createUser: clients.transferClient,
				stored:     stored,
				readFile:   os.ReadFile,
			})
			clients.log("transfer", "CreateUser", start, err)
			if err == nil {
				serverID, _ := cmd.Flags().GetString("server-id")
				if serverID == "" {
					serverID = stored
				}
				clients.audit("user add", serverID)
			}
			return err
		},
	}
	cmd.Flags().String("server-id", "", "Transfer server ID (defaults to the stored server)")
	cmd.Flags().String("role", "", "IAM role ARN granting the user's S3 access")
	cmd.Flags().String("public-key", "", "Path to the user's SSH public key file")
	cmd.Flags().String("bucket", "", "Bucket backing the user's home directory")
	cmd.Flags().StringArray("map", nil, "Extra logical mapping entry=target (repeatable)")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("public-key")
	_ = cmd.MarkFlagRequired("bucket")
	return cmd
}

func runUserAdd(cmd *cobra.Command, userName string, deps *userAddDeps) error {
	ctx := cmdContext(cmd)

	flagServerID, err := cmd.Flags().GetString("server-id")
	if err != nil {
		return err
	}
	var idArgs []string
	if flagServerID != "" {
		idArgs = []string{flagServerID}
	}
	serverID, err := resolveServerID(idArgs, deps.stored)
	if err != nil {
		return err
	}

	roleARN, err := cmd.Flags().GetString("role")
	if err != nil {
		return err
	}
	keyPath, err := cmd.Flags().GetString("public-key")
	if err != nil {
		return err
	}
	bucket, err := cmd.Flags().GetString("bucket")
	if err != nil {
		return err
	}
	extraMaps, err := cmd.Flags().GetStringArray("map")
	if err != nil {
		return err
	}

	keyBody, err := deps.readFile(keyPath)
	if err != nil {
		return fmt.Errorf("reading public key %q: %w", keyPath, err)
	}

	// Home directory: the SFTP root maps to the user's folder in the bucket.
	mappings := map[string]string{
		"/": fmt.Sprintf("/%s/%s", bucket, userName),
	}
	for _, m := range extraMaps {
		entry, target, ok := strings.Cut(m, "=")
		if !ok || entry == "" || target == "" {
			return fmt.Errorf("invalid --map %q; expected entry=target", m)
		}
		mappings[entry] = target
	}

	spec := transfer.UserSpec{
		ServerID:          serverID,
		UserName:          userName,
		AccessRoleARN:     roleARN,
		PublicKey:         strings.TrimSpace(string(keyBody)),
		DirectoryMappings: mappings,
	}
	if err := transfer.AddUser(ctx, deps.createUser, spec); err != nil {
		return err
	}

	cliCtx := cli.FromCommand(cmd)
	if cliCtx != nil && cliCtx.JSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"server_id": serverID,
			"user":      userName,
			"mappings":  mappings,
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "User %q added to server %s.\n", userName, serverID)
	return nil
}
