package chat

import "fmt"

// synthesize builds the final structured response for a finished task. The
// block layout is fixed per intent; the trace is whatever the worker recorded
// while executing the plan.
func (m *Manager) synthesize(t *Task, p *pipeline) *Result {
	res := &Result{Trace: t.trace}

	switch t.Intent {
	case IntentChart:
		chart := p.chart
		res.Blocks = []Block{
			{
				Type:    BlockText,
				Content: fmt.Sprintf("Here is the product trend analysis for your query: *'%s'*", t.Prompt),
			},
			{
				Type:    BlockPlotly,
				Spec:    &chart,
				Insight: p.insight,
			},
			{
				Type:    BlockText,
				Content: "Notice how fast it loads if you ask again (Data & Insight Cache Hit)!",
			},
		}

	case IntentMap:
		chart := p.chart
		res.Blocks = []Block{
			{
				Type:    BlockText,
				Content: fmt.Sprintf("Here is the user geographic distribution for: *'%s'*", t.Prompt),
			},
			{
				Type:    BlockPlotly,
				Spec:    &chart,
				Insight: p.insight,
			},
		}

	case IntentRAG:
		res.Blocks = []Block{
			{
				Type:    BlockText,
				Content: fmt.Sprintf("Based on the internal knowledge base, here is the information regarding: *'%s'*", t.Prompt),
			},
			{
				Type: BlockText,
				Content: "According to the **2025 Employee Handbook** and the **Remote Work Policy**, " +
					"employees are allowed up to 3 days of remote work per week with manager approval. " +
					"Core hours are 10 AM to 3 PM.",
			},
			{
				Type: BlockReference,
				Sources: []Source{
					{
						Title:   "2025 Employee Handbook (v2.1)",
						URL:     "https://wiki.example.com/handbook",
						Snippet: "...core hours for all employees are 10:00 AM to 3:00 PM local time...",
					},
					{
						Title:   "Remote Work Policy",
						URL:     "https://wiki.example.com/remote-policy",
						Snippet: "...up to 3 days of remote work per week may be granted subject to manager approval...",
					},
				},
			},
		}

	default:
		res.Blocks = []Block{
			{
				Type:    BlockText,
				Content: fmt.Sprintf("I received your message: *'%s'*.", t.Prompt),
			},
			{
				Type: BlockText,
				Content: "Try asking about **product trends** or a **user distribution map** " +
					"to see the caching API in action.",
			},
		}
	}

	return res
}
