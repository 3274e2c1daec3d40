package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/winfsp/cgofuse/fuse"

	"github.com/apexforge/apexcad/internal/scene"
	"github.com/apexforge/apexcad/internal/scenefs"
)

var nfsFlag bool

var mountCmd = &cobra.Command{
	Use:   "mount [scene.db] [mountpoint]",
	Short: "Browse an imported assembly as a read-only filesystem",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := args[0]
		mountPoint := args[1]

		store, err := scene.LoadSQLite(dbPath)
		if err != nil {
			return fmt.Errorf("load scene: %w", err)
		}

		if nfsFlag {
			return mountNFS(store, mountPoint)
		}

		sceneFs := scenefs.NewFuseFS(store)
		host := fuse.NewFileSystemHost(sceneFs)

		fmt.Printf("Mounting %s at %s (using fuse-t/cgofuse)...\n", dbPath, mountPoint)

		// Use -o ro (Read Only)
		// Use -o uid=N,gid=N to ensure we own the mount (critical for fuse-t/NFS)
		opts := []string{
			"-o", "ro",
			"-o", fmt.Sprintf("uid=%d", os.Getuid()),
			"-o", fmt.Sprintf("gid=%d", os.Getgid()),
		}

		if !host.Mount(mountPoint, opts) {
			return fmt.Errorf("mount failed")
		}
		return nil
	},
}

// mountNFS serves the scene over an in-process NFS server and mounts it
// via the system mount command, then blocks until interrupted.
func mountNFS(store scene.Store, mountPoint string) error {
	srv, err := scenefs.NewServer(scenefs.New(store))
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	fmt.Printf("NFS server listening on port %d\n", srv.Port())
	if err := scenefs.Mount(srv.Port(), mountPoint); err != nil {
		return err
	}
	fmt.Printf("Mounted at %s. Ctrl-C to unmount.\n", mountPoint)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	fmt.Println("Unmounting...")
	return scenefs.Unmount(mountPoint)
}

func init() {
	mountCmd.Flags().BoolVar(&nfsFlag, "nfs", false, "Serve over NFS instead of FUSE")
	rootCmd.AddCommand(mountCmd)
}
