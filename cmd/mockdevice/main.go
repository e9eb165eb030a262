// Command mockdevice simulates the embedded TV runtime: it uploads a
// function inventory, keeps the broker's liveness fresh, polls for
// queued commands and posts results. Useful for demos and end-to-end
// testing without a real device.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

type uploadFunctionsRequest struct {
	Functions  []functionEntry        `json:"functions"`
	DeviceInfo map[string]interface{} `json:"deviceInfo"`
}

type functionEntry struct {
	Name        string   `json:"name"`
	Parameters  []string `json:"parameters"`
	Description string   `json:"description,omitempty"`
}

type command struct {
	ID         string        `json:"id"`
	Function   string        `json:"function"`
	Parameters []interface{} `json:"parameters"`
}

type batchResponse struct {
	HasCommands      bool      `json:"hasCommands"`
	Commands         []command `json:"commands"`
	RemainingInQueue int       `json:"remainingInQueue"`
}

type commandResult struct {
	CommandID          string      `json:"commandId"`
	Success            bool        `json:"success"`
	Data               interface{} `json:"data,omitempty"`
	Error              string      `json:"error,omitempty"`
	TVProcessingTimeMs float64     `json:"tvProcessingTimeMs"`
}

func main() {
	brokerURL := flag.String("broker-url", "http://localhost:3000", "Broker base URL")
	pollInterval := flag.Duration("poll-interval", 1*time.Second, "Command poll interval")
	keepAliveInterval := flag.Duration("keepalive-interval", 30*time.Second, "Keep-alive interval")
	batchSize := flag.Int("batch-size", 10, "Commands to pull per poll")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := uploadFunctions(ctx, *brokerURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error uploading functions: %v\n", err)
		os.Exit(1)
	}
	log.Printf("Registered with broker at %s", *brokerURL)

	go keepAliveLoop(ctx, *brokerURL, *keepAliveInterval)

	pollLoop(ctx, *brokerURL, *pollInterval, *batchSize)
	log.Println("mockdevice stopped")
}

// deviceInfo samples the host so the broker sees realistic metadata.
func deviceInfo() map[string]interface{} {
	info := map[string]interface{}{
		"model":    "MockTV-1",
		"platform": runtime.GOOS + "/" + runtime.GOARCH,
	}
	if h, err := host.Info(); err == nil && h != nil {
		info["hostname"] = h.Hostname
		info["os"] = h.Platform
	}
	if memInfo, err := mem.VirtualMemory(); err == nil && memInfo != nil {
		info["memTotal"] = memInfo.Total
	}
	if cpuInfo, err := cpu.Info(); err == nil && len(cpuInfo) > 0 {
		info["cpuModel"] = cpuInfo[0].ModelName
	}
	return info
}

func uploadFunctions(ctx context.Context, baseURL string) error {
	req := uploadFunctionsRequest{
		Functions: []functionEntry{
			{Name: "ping", Parameters: []string{}, Description: "Responds with pong"},
			{Name: "echo", Parameters: []string{"value"}, Description: "Returns its first parameter"},
			{Name: "sleep", Parameters: []string{"ms"}, Description: "Waits before responding"},
		},
		DeviceInfo: deviceInfo(),
	}
	return postJSON(ctx, baseURL+"/api/functions", req)
}

func keepAliveLoop(ctx context.Context, baseURL string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := postJSON(ctx, baseURL+"/api/keepalive", map[string]interface{}{}); err != nil {
				fmt.Fprintf(os.Stderr, "Keep-alive failed: %v\n", err)
			}
		}
	}
}

func pollLoop(ctx context.Context, baseURL string, interval time.Duration, batchSize int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			batch, err := pullCommands(ctx, baseURL, batchSize)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Poll failed: %v\n", err)
				continue
			}
			for _, cmd := range batch.Commands {
				result := execute(cmd)
				if err := postJSON(ctx, baseURL+"/api/execute-response", result); err != nil {
					fmt.Fprintf(os.Stderr, "Result post failed: %v\n", err)
				}
			}
			if batch.RemainingInQueue > 0 {
				log.Printf("%d commands still queued", batch.RemainingInQueue)
			}
		}
	}
}

func pullCommands(ctx context.Context, baseURL string, batchSize int) (*batchResponse, error) {
	url := fmt.Sprintf("%s/api/remote-command-batch?batchSize=%d", baseURL, batchSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var batch batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

func execute(cmd command) commandResult {
	start := time.Now()
	result := commandResult{CommandID: cmd.ID, Success: true}

	switch cmd.Function {
	case "ping":
		result.Data = "pong"
	case "echo":
		if len(cmd.Parameters) > 0 {
			result.Data = cmd.Parameters[0]
		}
	case "sleep":
		ms := 100.0
		if len(cmd.Parameters) > 0 {
			if v, ok := cmd.Parameters[0].(float64); ok {
				ms = v
			}
		}
		time.Sleep(time.Duration(ms) * time.Millisecond)
		result.Data = ms
	default:
		result.Success = false
		result.Error = fmt.Sprintf("unknown function: %s", cmd.Function)
	}

	result.TVProcessingTimeMs = float64(time.Since(start).Milliseconds())
	return result
}

func postJSON(ctx context.Context, url string, body interface{}) error {
	blob, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(blob))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
