package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/santoshnarayanan/sda/internal/domain/search/filter"
	"github.com/santoshnarayanan/sda/internal/domain/search/request"
	"github.com/santoshnarayanan/sda/internal/usecase/answer"
	"github.com/santoshnarayanan/sda/internal/usecase/assembler"
)

type queryOptions struct {
	collection string
	topK       int
	rerank     bool
	filters    map[string]string
	generate   bool
	language   string
	jsonOut    bool
}

func newQueryCmd(g *globalOptions) *cobra.Command {
	o := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "query <prompt>",
		Short: "Retrieve ranked context for a prompt",
		Example: `  sda query "how do I configure the port?" -c sda_dev_documentation
  sda query "summarise the session" -c chats --filter session_id=s1 --top-k 8
  sda query "write a python client" -c acme_api --answer`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), g, "cli")
			if err != nil {
				return err
			}
			defer a.Close()

			topK := o.topK
			if topK == 0 {
				topK = a.cfg.Retrieval.DefaultTopK
			}
			expr, err := filter.FromMap(o.filters)
			if err != nil {
				return err
			}
			q, err := request.New(args[0], topK, o.rerank, expr, o.language)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if o.generate {
				ans, err := a.answer.Answer(cmd.Context(), o.collection, q)
				if err != nil {
					return err
				}
				return printAnswer(out, ans, o.jsonOut)
			}

			ranked, err := a.retrieval.Retrieve(cmd.Context(), o.collection, q)
			if err != nil {
				return err
			}
			return printContext(out, assembler.Assemble(ranked, a.cfg.Retrieval.MaxChunks), o.jsonOut)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.collection, "collection", "c", "", "collection to search")
	f.IntVarP(&o.topK, "top-k", "k", 0, "number of chunks to return, 1-20 (default retrieval.default_top_k)")
	f.BoolVar(&o.rerank, "rerank", true, "rerank candidates with lexical and fuzzy signals")
	f.StringToStringVar(&o.filters, "filter", nil, "equality filter on a payload field, key=value (repeatable)")
	f.BoolVar(&o.generate, "answer", false, "generate an answer from the retrieved context")
	f.StringVar(&o.language, "language", "", "content language hint for --answer, e.g. python or react")
	f.BoolVar(&o.jsonOut, "json", false, "print the result as JSON")

	_ = cmd.MarkFlagRequired("collection")
	return cmd
}

type sourceJSON struct {
	Source  string  `json:"source"`
	ChunkID int     `json:"chunk_id"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet"`
}

type contextJSON struct {
	ContextText string       `json:"context_text"`
	Sources     []sourceJSON `json:"sources"`
}

type answerJSON struct {
	contextJSON
	Status           string `json:"status"`
	GeneratedContent string `json:"generated_content,omitempty"`
	FailureReason    string `json:"failure_reason,omitempty"`
	ContentLanguage  string `json:"content_language"`
}

func toContextJSON(c assembler.Context) contextJSON {
	out := contextJSON{ContextText: c.Text, Sources: make([]sourceJSON, 0, len(c.Sources))}
	for _, s := range c.Sources {
		out.Sources = append(out.Sources, sourceJSON(s))
	}
	return out
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printContext(w io.Writer, c assembler.Context, asJSON bool) error {
	if asJSON {
		return writeIndented(w, toContextJSON(c))
	}
	if len(c.Sources) == 0 {
		_, err := fmt.Fprintln(w, "no matching chunks")
		return err
	}
	for i, s := range c.Sources {
		fmt.Fprintf(w, "%d. %s #%d  score=%.4f\n   %s\n", i+1, s.Source, s.ChunkID, s.Score, s.Snippet)
	}
	return nil
}

func printAnswer(w io.Writer, a answer.Answer, asJSON bool) error {
	if asJSON {
		return writeIndented(w, answerJSON{
			contextJSON:      toContextJSON(a.Context),
			Status:           string(a.Result.Status()),
			GeneratedContent: a.Result.Content(),
			FailureReason:    a.Result.Reason(),
			ContentLanguage:  a.Language,
		})
	}
	if !a.Result.IsOk() {
		fmt.Fprintf(w, "generation failed: %s\n\n", a.Result.Reason())
		return printContext(w, a.Context, false)
	}
	fmt.Fprintln(w, a.Result.Content())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "sources:")
	for _, s := range a.Context.Sources {
		fmt.Fprintf(w, "  %s #%d  score=%.4f\n", s.Source, s.ChunkID, s.Score)
	}
	return nil
}
