package instance

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultJava is used when a descriptor does not pin a JVM binary.
const DefaultJava = "java"

// Server describes one game or proxy server instance. It is immutable for
// the lifetime of a run; the supervisor only ever reads it.
type Server struct {
	Name           string `json:"name" mapstructure:"name"`
	JavaPath       string `json:"java_path" mapstructure:"java_path"` // empty => DefaultJava
	MinMemoryMB    int    `json:"min_memory_mb" mapstructure:"min_memory_mb"`
	MaxMemoryMB    int    `json:"max_memory_mb" mapstructure:"max_memory_mb"`
	ServerSoftware string `json:"server_software" mapstructure:"server_software"` // path to the server jar
	Port           int    `json:"port" mapstructure:"port"`
	Proxy          bool   `json:"proxy" mapstructure:"proxy"`
}

// StopCommand returns the protocol command that asks this server to shut
// itself down: proxies understand "end", game servers understand "stop".
func (s *Server) StopCommand() string {
	if s.Proxy {
		return "end"
	}
	return "stop"
}

// Validate rejects descriptors that cannot produce a startable command line.
func (s *Server) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("server requires name")
	}
	if strings.TrimSpace(s.ServerSoftware) == "" {
		return fmt.Errorf("server %s requires server_software", s.Name)
	}
	if s.MinMemoryMB <= 0 || s.MaxMemoryMB <= 0 {
		return fmt.Errorf("server %s: memory bounds must be positive", s.Name)
	}
	if s.MinMemoryMB > s.MaxMemoryMB {
		return fmt.Errorf("server %s: min memory %dM exceeds max %dM", s.Name, s.MinMemoryMB, s.MaxMemoryMB)
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("server %s: invalid port %d", s.Name, s.Port)
	}
	return nil
}

// BuildCommand renders the full launch command line for the server.
// The token order is a compatibility surface: downstream tooling and the
// child JVM both depend on it, so it must not be reordered.
func (s *Server) BuildCommand() string {
	var b strings.Builder
	if s.JavaPath == "" {
		b.WriteString(DefaultJava)
	} else {
		b.WriteString(s.JavaPath)
	}
	b.WriteString(" -Xms")
	b.WriteString(strconv.Itoa(s.MinMemoryMB))
	b.WriteString("M -Xmx")
	b.WriteString(strconv.Itoa(s.MaxMemoryMB))
	b.WriteString("M -XX:+UseG1GC")
	if !s.Proxy {
		b.WriteString(" -Dcom.mojang.eula.agree=true -DIReallyKnowWhatIAmDoingISwear")
	}
	b.WriteString(" -jar ")
	b.WriteString(s.ServerSoftware)
	b.WriteString(" --port ")
	b.WriteString(strconv.Itoa(s.Port))
	if !s.Proxy {
		b.WriteString(" nogui")
	}
	return b.String()
}

// Argv splits the built command into the argv passed to the OS spawn
// facility. The split is a plain space split, matching how the command
// string is defined token by token.
func (s *Server) Argv() []string {
	return strings.Split(s.BuildCommand(), " ")
}
