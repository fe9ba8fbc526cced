package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	transfertypes "github.com/aws/aws-sdk-go-v2/service/transfer/types"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"

	lakeaws "github.com/nicholasgasior/lakegate/internal/aws"
	"github.com/nicholasgasior/lakegate/internal/cli"
	"github.com/nicholasgasior/lakegate/internal/config"
	"github.com/nicholasgasior/lakegate/internal/progress"
	"github.com/nicholasgasior/lakegate/internal/session"
	"github.com/nicholasgasior/lakegate/internal/transfer"
)

// uploader is the subset of session.Session used by put. Injected so tests
// can run the full command flow without a live SFTP endpoint.
type uploader interface {
	Put(localPath, bucket, name string) error
	Close() error
}

// putDeps holds the injectable dependencies for put.
type putDeps struct {
	describe lakeaws.DescribeServerAPI
	start    lakeaws.StartServerAPI
	stop     lakeaws.StopServerAPI

	stored string
	region string
	poll   transfer.PollConfig

	loadKey         func(path string) (ssh.Signer, error)
	hostKeyCallback ssh.HostKeyCallback
	dial            func(opts session.DialOptions) (uploader, error)
}

func newPutCommand() *cobra.Command {
	return newPutCommandWithDeps(nil)
}

// newPutCommandWithDeps creates the put command with explicit dependencies
// for testing.
func newPutCommandWithDeps(deps *putDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <local-file>",
		Short: "Upload a file to a bucket through the SFTP endpoint",
		Long: "Upload a local file to <bucket>/<name> through the transfer " +
			"server's SFTP endpoint. The server is started and awaited if it is " +
			"not online. Host keys are pinned on first use; a changed key aborts " +
			"the connection.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps != nil {
				return runPut(cmd, args[0], deps)
			}
			clients := awsClientsFromContext(cmd.Context())
			if clients == nil {
				return fmt.Errorf("AWS clients not configured")
			}
			stored := ""
			if clients.lakegateConfig != nil {
				stored = clients.lakegateConfig.ServerID
			}
			hostKeys := session.NewHostKeyStore(config.DefaultConfigDir())
			start := time.Now()
			err := runPut(cmd, args[0], &putDeps{
				describe:        clients.transferClient,
				start:           clients.transferClient,
				stop:            clients.transferClient,
				stored:          stored,
				region:          clients.region,
				poll:            clients.pollConfig(),
				loadKey:         session.LoadPrivateKey,
				hostKeyCallback: hostKeys.Callback(),
				dial: func(opts session.DialOptions) (uploader, error) {
					return session.Dial(opts)
				},
			})
			clients.log("transfer", "Put", start, err)
			if err == nil {
				serverID, _ := cmd.Flags().GetString("server-id")
				if serverID == "" {
					serverID = stored
				}
				clients.audit("put", serverID)
			}
			return err
		},
	}
	cmd.Flags().String("bucket", "", "Destination bucket")
	cmd.Flags().String("name", "", "Destination object name (defaults to the local file name)")
	cmd.Flags().String("user", "", "SFTP user name")
	cmd.Flags().String("identity", "", "Path to the SSH private key")
	cmd.Flags().String("server-id", "", "Transfer server ID (defaults to the stored server)")
	cmd.Flags().Bool("stop-after", false, "Stop the server after the upload")
	_ = cmd.MarkFlagRequired("bucket")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("identity")
	return cmd
}

func runPut(cmd *cobra.Command, localPath string, deps *putDeps) error {
	ctx := cmdContext(cmd)

	bucket, err := cmd.Flags().GetString("bucket")
	if err != nil {
		return err
	}
	name, err := cmd.Flags().GetString("name")
	if err != nil {
		return err
	}
	if name == "" {
		name = filepath.Base(localPath)
	}
	user, err := cmd.Flags().GetString("user")
	if err != nil {
		return err
	}
	identityPath, err := cmd.Flags().GetString("identity")
	if err != nil {
		return err
	}
	flagServerID, err := cmd.Flags().GetString("server-id")
	if err != nil {
		return err
	}
	stopAfter, err := cmd.Flags().GetBool("stop-after")
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

	if _, err := os.Stat(localPath); err != nil {
		return fmt.Errorf("local file %q: %w", localPath, err)
	}

	signer, err := deps.loadKey(identityPath)
	if err != nil {
		return fmt.Errorf("loading private key %q: %w", identityPath, err)
	}

	w := cmd.OutOrStdout()
	cliCtx := cli.FromCommand(cmd)
	jsonOut := cliCtx != nil && cliCtx.JSON

	// Bring the server online before dialing.
	state, err := transfer.ServerState(ctx, deps.describe, serverID)
	if err != nil {
		return err
	}
	if state != transfertypes.StateOnline {
		if state == transfertypes.StateOffline {
			if err := transfer.StartServer(ctx, deps.start, serverID); err != nil {
				return err
			}
		}
		sp := progress.NewCommandSpinner(w, jsonOut)
		sp.Start("Waiting for server to come online...")
		if err := transfer.WaitOnline(ctx, deps.describe, serverID, deps.poll, sp.Writer); err != nil {
			sp.Fail(err.Error())
			return err
		}
		sp.Stop("")
	}

	endpoint := transfer.Endpoint(serverID, deps.region)

	sess, err := deps.dial(session.DialOptions{
		Host:            endpoint,
		User:            user,
		Signer:          signer,
		HostKeyCallback: deps.hostKeyCallback,
	})
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", endpoint, err)
	}

	putErr := sess.Put(localPath, bucket, name)
	closeErr := sess.Close()
	if putErr != nil {
		return fmt.Errorf("uploading %q: %w", localPath, putErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing session: %w", closeErr)
	}

	if stopAfter {
		if err := transfer.StopServer(ctx, deps.stop, serverID); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not stop server %s: %v\n", serverID, err)
		}
	}

	remote := session.RemotePath(bucket, name)

	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]string{
			"server_id": serverID,
			"endpoint":  endpoint,
			"remote":    remote,
		})
	}

	fmt.Fprintf(w, "Uploaded %s to %s via %s.\n", localPath, remote, endpoint)
	return nil
}
