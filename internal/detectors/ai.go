package detectors

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

// AIDetector surfaces AI integrations: provider endpoints in observed
// network traffic, chat widget assets and runtime JS globals. Presence
// findings are informational-to-low; direct browser-to-provider calls
// are the real risk because they require a client-visible key.
type AIDetector struct {
	logger *logrus.Logger
}

func NewAIDetector(logger *logrus.Logger) *AIDetector {
	if logger == nil {
		logger = logrus.New()
	}
	return &AIDetector{logger: logger}
}

func (d *AIDetector) Name() string { return "ai" }

var aiProviderHosts = []struct {
	host     string
	provider string
}{
	{"api.openai.com", "OpenAI"},
	{"api.anthropic.com", "Anthropic"},
	{"generativelanguage.googleapis.com", "Google Gemini"},
	{"api.cohere.ai", "Cohere"},
	{"api.mistral.ai", "Mistral"},
	{"api.together.xyz", "Together AI"},
	{"api.groq.com", "Groq"},
	{"api-inference.huggingface.co", "Hugging Face"},
}

var chatWidgetHints = []string{
	"intercom.io", "crisp.chat", "drift.com", "tawk.to", "zendesk",
	"botpress", "voiceflow", "chatbase.co", "kommunicate",
}

func (d *AIDetector) Detect(_ context.Context, result *models.CrawlResult) []models.Finding {
	var findings []models.Finding

	for _, req := range result.NetworkRequests {
		for _, p := range aiProviderHosts {
			if !strings.Contains(req.URL, p.host) {
				continue
			}
			findings = append(findings, models.Finding{
				Category:       "ai",
				Severity:       models.SeverityHigh,
				Title:          fmt.Sprintf("Browser calls %s API directly", p.provider),
				Description:    "The page talks to an AI provider from the client, which requires shipping an API key or an unauthenticated proxy to every visitor.",
				Evidence:       fmt.Sprintf("%s %s", req.Method, truncate(req.URL, 120)),
				Recommendation: "Route AI requests through an authenticated backend endpoint with rate limiting.",
			})
			break
		}
	}

	for _, script := range result.Scripts {
		lower := strings.ToLower(script)
		for _, hint := range chatWidgetHints {
			if strings.Contains(lower, hint) {
				findings = append(findings, models.Finding{
					Category:       "ai",
					Severity:       models.SeverityInfo,
					Title:          "Third-party chat widget detected",
					Description:    "An embedded chat widget processes visitor input, commonly backed by an LLM.",
					Evidence:       truncate(script, 120),
					Recommendation: "Review the widget vendor's data handling and prompt-injection posture.",
				})
				break
			}
		}
	}

	if s := result.JSSignals; s != nil {
		if s.HasLangChain {
			findings = append(findings, models.Finding{
				Category:       "ai",
				Severity:       models.SeverityMedium,
				Title:          "LangChain detected in client-side JavaScript",
				Description:    "Running orchestration chains in the browser exposes prompts, tools and usually credentials.",
				Evidence:       "window.langchain global present",
				Recommendation: "Move chain execution server-side.",
			})
		}
		if s.HasOpenAI {
			findings = append(findings, models.Finding{
				Category:       "ai",
				Severity:       models.SeverityMedium,
				Title:          "OpenAI client library loaded in the browser",
				Description:    "The official SDK in the browser implies requests are signed client-side.",
				Evidence:       "window.openai global present",
				Recommendation: "Proxy completions through a backend.",
			})
		}
		if s.HasVercelAI {
			findings = append(findings, models.Finding{
				Category:       "ai",
				Severity:       models.SeverityInfo,
				Title:          "Vercel AI SDK detected",
				Description:    "The site streams AI responses via the Vercel AI SDK.",
				Evidence:       "window.ai.generateText present",
				Recommendation: "Confirm the backing route enforces authentication and rate limits.",
			})
		}
		if s.HasAIConfig {
			findings = append(findings, models.Finding{
				Category:       "ai",
				Severity:       models.SeverityMedium,
				Title:          "AI configuration object exposed on window",
				Description:    "A global AI config reveals model names, endpoints and sometimes credentials.",
				Evidence:       "global AI configuration object present",
				Recommendation: "Keep AI configuration server-side; the client only needs an opaque session.",
			})
		}
	}

	return findings
}
