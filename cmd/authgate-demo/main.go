// Command authgate-demo runs an interactive storefront sign-in session
// against a real Cognito user pool, with Prometheus metrics on the side.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/redis/go-redis/v9"
	authgate "github.com/techstore/authgate"
	"github.com/techstore/authgate/metrics/export/prometheus"
	"github.com/techstore/authgate/provider/cognito"
)

type demoConfig struct {
	AWSRegion    string `env:"AWS_REGION" env-default:"us-east-1"`
	PoolClientID string `env:"COGNITO_CLIENT_ID" env-required:"true"`
	RedisAddr    string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	MetricsAddr  string `env:"METRICS_ADDR" env-default:":9102"`
	AuditJSON    bool   `env:"AUDIT_JSON" env-default:"false"`
}

func main() {
	var cfg demoConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		log.Fatalf("aws config: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	builder := authgate.New().
		WithProvider(cognito.NewFromConfig(awsCfg, cfg.PoolClientID)).
		WithRedis(rdb).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true)

	if cfg.AuditJSON {
		engineCfg := authgate.DefaultConfig()
		engineCfg.Audit.Enabled = true
		engineCfg.Audit.BufferSize = 256
		builder = builder.WithConfig(engineCfg).
			WithMetricsEnabled(true).
			WithLatencyHistograms(true).
			WithAuditSink(authgate.NewJSONWriterSink(os.Stderr))
	}

	flow, err := builder.Build()
	if err != nil {
		log.Fatalf("build flow: %v", err)
	}
	defer flow.Close()

	if err := flow.Start(ctx); err != nil {
		log.Fatalf("start flow: %v", err)
	}

	exporter := prometheus.NewPrometheusExporter(flow)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", exporter.Handler())
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			log.Printf("metrics server: %v", err)
		}
	}()

	repl(ctx, flow)
}

func repl(ctx context.Context, flow *authgate.Flow) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("commands: signin <email> <password> | code <code> | whoami | cancel | signout | quit")

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "signin":
			if len(fields) != 3 {
				fmt.Println("usage: signin <email> <password>")
				continue
			}
			outcome, err := flow.BeginSignIn(ctx, fields[1], fields[2])
			if err != nil {
				fmt.Printf("sign-in failed: %v\n", err)
				continue
			}
			printOutcome(outcome)
		case "code":
			if len(fields) != 2 {
				fmt.Println("usage: code <code>")
				continue
			}
			outcome, err := flow.ResolveMFA(ctx, fields[1])
			if err != nil {
				fmt.Printf("challenge failed: %v\n", err)
				continue
			}
			printOutcome(outcome)
		case "whoami":
			session := flow.Session()
			if !session.Authenticated {
				fmt.Println("not signed in")
				continue
			}
			fmt.Printf("%s <%s> role=%s\n", session.User.DisplayName, session.User.Email, session.User.Role)
		case "cancel":
			flow.Cancel(ctx)
			fmt.Println("cancelled")
		case "signout":
			if err := flow.SignOut(ctx); err != nil {
				fmt.Printf("sign-out: %v\n", err)
			}
		case "quit":
			return
		default:
			fmt.Println("unknown command")
		}
	}
}

func printOutcome(outcome *authgate.SignInOutcome) {
	if outcome.Authenticated {
		fmt.Println("signed in")
		return
	}
	fmt.Printf("challenge: %s\n", outcome.Challenge)
	if outcome.Enrollment != nil {
		fmt.Printf("enroll your authenticator: %s\n", outcome.Enrollment.SetupURI)
	}
}
