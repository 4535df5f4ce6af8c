package agent

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Platform identifies the host OS the way the system prompt names it.
func Platform() string {
	if runtime.GOOS != "linux" {
		if runtime.GOOS == "darwin" {
			return "macOS"
		}
		return runtime.GOOS
	}
	if isWSL() {
		return "Linux (WSL)"
	}
	return "Linux"
}

func isWSL() bool {
	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}
	lower := strings.ToLower(string(data))
	return strings.Contains(lower, "microsoft") || strings.Contains(lower, "wsl")
}

// SystemInfo is the compact host summary injected into the system prompt.
type SystemInfo struct {
	Host            string
	OS              string
	Kernel          string
	CPU             string
	RAM             string
	User            string
	SudoAvailable   bool
	PackageManager  string
	Disks           string
	Network         string
	InstalledTools  []string
	RunningServices []string
	Containers      []string
}

var candidateTools = []string{"git", "docker", "python3", "node", "go", "make", "cmake", "cargo", "rustc"}
var candidatePackageManagers = []string{"apt", "apt-get", "dnf", "yum", "brew", "pacman", "apk"}

// CollectSystemInfo gathers a best-effort snapshot of the host. Every probe
// degrades silently: a missing tool or unreadable file just omits its field.
func CollectSystemInfo() SystemInfo {
	info := SystemInfo{
		OS:     Platform(),
		Kernel: unameR(),
		CPU:    cpuModel(),
		RAM:    ramTotal(),
		User:   currentUser(),
	}
	info.Host, _ = os.Hostname()
	info.SudoAvailable = commandSucceeds("sudo", "-n", "true")
	info.PackageManager = detectPackageManager()
	info.Disks = diskSummary()
	info.Network = networkSummary()
	info.InstalledTools = detectInstalledTools()
	info.RunningServices = runningServices()
	info.Containers = runningContainers()
	return info
}

func unameR() string {
	out, err := exec.Command("uname", "-r").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func cpuModel() string {
	data, err := os.ReadFile("/proc/cpuinfo")
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "model name") {
			parts := strings.SplitN(line, ":", 2)
			if len(parts) == 2 {
				return strings.TrimSpace(parts[1])
			}
		}
	}
	return ""
}

func ramTotal() string {
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "MemTotal:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "MemTotal:"))
		}
	}
	return ""
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	out, err := exec.Command("whoami").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func commandSucceeds(name string, args ...string) bool {
	return exec.Command(name, args...).Run() == nil
}

func detectPackageManager() string {
	for _, pm := range candidatePackageManagers {
		if _, err := exec.LookPath(pm); err == nil {
			return pm
		}
	}
	return ""
}

func diskSummary() string {
	out, err := exec.Command("df", "-h", "/").Output()
	if err != nil {
		return ""
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) < 2 {
		return ""
	}
	return lines[len(lines)-1]
}

func networkSummary() string {
	out, err := exec.Command("hostname", "-I").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func detectInstalledTools() []string {
	var found []string
	for _, tool := range candidateTools {
		if _, err := exec.LookPath(tool); err == nil {
			found = append(found, tool)
		}
	}
	return found
}

func runningServices() []string {
	out, err := exec.Command("systemctl", "list-units", "--type=service", "--state=running", "--no-legend", "--plain").Output()
	if err != nil {
		return nil
	}
	var services []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 {
			services = append(services, fields[0])
		}
		if len(services) >= 20 {
			break
		}
	}
	return services
}

func runningContainers() []string {
	out, err := exec.Command("docker", "ps", "--format", "{{.Names}}").Output()
	if err != nil {
		return nil
	}
	var containers []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line != "" {
			containers = append(containers, line)
		}
	}
	return containers
}

// Render formats the collected info as the compact block the system
// prompt embeds.
func (i SystemInfo) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "host: %s\n", i.Host)
	fmt.Fprintf(&b, "os: %s\n", i.OS)
	fmt.Fprintf(&b, "kernel: %s\n", i.Kernel)
	fmt.Fprintf(&b, "cpu: %s\n", i.CPU)
	fmt.Fprintf(&b, "ram: %s\n", i.RAM)
	fmt.Fprintf(&b, "user: %s\n", i.User)
	fmt.Fprintf(&b, "sudo_available: %v\n", i.SudoAvailable)
	fmt.Fprintf(&b, "package_manager: %s\n", i.PackageManager)
	fmt.Fprintf(&b, "disks: %s\n", i.Disks)
	fmt.Fprintf(&b, "network: %s\n", i.Network)
	fmt.Fprintf(&b, "installed_tools: %s\n", strings.Join(i.InstalledTools, ", "))
	fmt.Fprintf(&b, "running_services: %s\n", strings.Join(i.RunningServices, ", "))
	fmt.Fprintf(&b, "containers: %s\n", strings.Join(i.Containers, ", "))
	return b.String()
}
