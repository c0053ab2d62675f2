// Command loadgen replays synthetic tracking traffic against a running API
// and prints latency and success metrics.
package main

import (
	"flag"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"
)

func main() {
	target := flag.String("target", "http://localhost:8080", "API base URL")
	rate := flag.Int("rate", 50, "requests per second")
	duration := flag.Duration("duration", 10*time.Second, "attack duration")
	sessions := flag.Int("sessions", 200, "number of simulated sessions")
	domainList := flag.String("domains", "loadtest.example", "comma-separated domains")
	flag.Parse()

	if *rate <= 0 || *sessions <= 0 {
		log.Fatal("rate and sessions must be positive")
	}
	domains := strings.Split(*domainList, ",")

	targeter := newTargeter(strings.TrimRight(*target, "/"), domains, *sessions, rand.New(rand.NewSource(time.Now().UnixNano())))
	attacker := vegeta.NewAttacker(vegeta.Timeout(15 * time.Second))
	pace := vegeta.Rate{Freq: *rate, Per: time.Second}

	var metrics vegeta.Metrics
	for res := range attacker.Attack(targeter, pace, *duration, "track") {
		metrics.Add(res)
	}
	metrics.Close()

	if err := vegeta.NewTextReporter(&metrics).Report(os.Stdout); err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}
}
