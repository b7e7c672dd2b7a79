package banner

import (
	"fmt"
)

const banner = `
███╗   ███╗███████╗ ██████╗ ███████╗██╗   ██╗███╗   ██╗ ██████╗
████╗ ████║██╔════╝██╔════╝ ██╔════╝╚██╗ ██╔╝████╗  ██║██╔════╝
██╔████╔██║███████╗██║  ███╗███████╗ ╚████╔╝ ██╔██╗ ██║██║
██║╚██╔╝██║╚════██║██║   ██║╚════██║  ╚██╔╝  ██║╚██╗██║██║
██║ ╚═╝ ██║███████║╚██████╔╝███████║   ██║   ██║ ╚████║╚██████╗
╚═╝     ╚═╝╚══════╝ ╚═════╝ ╚══════╝   ╚═╝   ╚═╝  ╚═══╝ ╚═════╝
`

// Print writes the startup banner with the effective runtime settings.
func Print(addr, dbPath, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST /v1/threads/direct            - open (or find) a direct thread")
	fmt.Println("POST /v1/threads/{id}/messages     - append a message")
	fmt.Println("GET  /v1/threads/{id}/messages     - page messages by cursor")
	fmt.Println("GET  /v1/ws?thread=<id>&since=<n>  - live event stream")
	fmt.Println("GET  /metrics                      - prometheus metrics")
	fmt.Println("\nIdentity comes from X-User-ID / X-Tenant-ID headers set by the gateway.")
}
