// Command sandstormctl is the operator CLI (spec §6): it starts/stops
// the daemon set, reports status, and restarts the front-end in place.
// mongo and admin-token are thin stubs — the datastore and the
// shell/account system they front are explicitly out of scope.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"

	"sandstormgo/internal/config"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Get()

	switch os.Args[1] {
	case "start":
		cmdStart(cfg)
	case "stop":
		cmdStop(cfg)
	case "status":
		cmdStatus(cfg)
	case "restart-frontend":
		cmdRestartFrontend(cfg)
	case "mongo":
		cmdMongo()
	case "admin-token":
		cmdAdminToken()
	case "version":
		fmt.Printf("sandstormctl v%s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`sandstormctl v` + version + `

Usage: sandstormctl <command>

Commands:
  start              Start the backend and gateway daemons
  stop               Send SIGTERM to the gateway and backend daemons
  status             Report whether the install is running
  restart-frontend   Restart the gateway daemon only, leaving grains running
  mongo              Open a shell against the install's datastore (stub)
  admin-token        Print an admin authentication token (stub)
  version            Print version
  help               Show this help`)
}

func cmdStart(cfg *config.Config) {
	if pid, ok := readPid(cfg); ok && processAlive(pid) {
		fmt.Printf("already running (pid %d)\n", pid)
		return
	}

	if err := os.MkdirAll(cfg.Paths.DataRoot+"/pid", 0700); err != nil {
		fmt.Fprintf(os.Stderr, "start: failed to create pid dir: %v\n", err)
		os.Exit(1)
	}

	backendPid, err := spawnDaemon("backend", cfg.Paths.DataRoot+"/pid/backend.pid")
	if err != nil {
		fmt.Fprintf(os.Stderr, "start: backend: %v\n", err)
		os.Exit(1)
	}
	gatewayPid, err := spawnDaemon("gateway", cfg.Paths.DataRoot+"/pid/gateway.pid")
	if err != nil {
		fmt.Fprintf(os.Stderr, "start: gateway: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(cfg.Paths.PidFile(), []byte(strconv.Itoa(gatewayPid)), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "start: failed to write pid file: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("started (backend pid %d, gateway pid %d)\n", backendPid, gatewayPid)
}

// spawnDaemon execs name (found alongside sandstormctl or on $PATH) as
// a detached background process and records its pid at pidPath.
func spawnDaemon(name, pidPath string) (int, error) {
	path, err := resolveDaemonBinary(name)
	if err != nil {
		return 0, err
	}
	cmd := exec.Command(path)
	cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(cmd.Process.Pid)), 0644); err != nil {
		return 0, err
	}
	return cmd.Process.Pid, nil
}

// resolveDaemonBinary looks for a sibling binary next to sandstormctl
// first (a bundled install), falling back to $PATH.
func resolveDaemonBinary(name string) (string, error) {
	if self, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(self), name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return exec.LookPath(name)
}

func cmdStop(cfg *config.Config) {
	pid, ok := readPid(cfg)
	if !ok || !processAlive(pid) {
		fmt.Println("not running")
		return
	}
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		fmt.Fprintf(os.Stderr, "stop failed: %v\n", err)
		os.Exit(1)
	}
	if data, err := os.ReadFile(cfg.Paths.DataRoot + "/pid/backend.pid"); err == nil {
		if bpid, err := strconv.Atoi(string(data)); err == nil && processAlive(bpid) {
			_ = syscall.Kill(bpid, syscall.SIGTERM)
		}
	}
	_ = os.Remove(cfg.Paths.PidFile())
	fmt.Println("stopped")
}

func cmdStatus(cfg *config.Config) {
	pid, ok := readPid(cfg)
	if !ok || !processAlive(pid) {
		fmt.Println("not running")
		os.Exit(1)
	}
	fmt.Printf("running (pid %d)\n", pid)
}

// cmdRestartFrontend restarts only the gateway process, leaving grain
// supervisors untouched (spec §6: operators can bounce the front-end
// without tearing down running grains).
func cmdRestartFrontend(cfg *config.Config) {
	pidPath := cfg.Paths.DataRoot + "/pid/gateway.pid"
	if data, err := os.ReadFile(pidPath); err == nil {
		if pid, err := strconv.Atoi(string(data)); err == nil && processAlive(pid) {
			_ = syscall.Kill(pid, syscall.SIGTERM)
		}
	}

	pid, err := spawnDaemon("gateway", pidPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "restart-frontend failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("gateway restarted (pid %d)\n", pid)
}

// cmdMongo is a stub: the datastore behind it is an explicitly
// out-of-scope collaborator (spec §1).
func cmdMongo() {
	fmt.Fprintln(os.Stderr, "sandstormctl mongo: no datastore is wired in this build")
	os.Exit(1)
}

// cmdAdminToken is a stub: the shell/account system that would issue
// one is an explicitly out-of-scope collaborator (spec §1).
func cmdAdminToken() {
	fmt.Fprintln(os.Stderr, "sandstormctl admin-token: no account system is wired in this build")
	os.Exit(1)
}

func readPid(cfg *config.Config) (int, bool) {
	data, err := os.ReadFile(cfg.Paths.PidFile())
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, false
	}
	return pid, true
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
