// Package gist はレガシーのGitHub gistコメントスレッドからベンチマーク結果を
// 取り込むためのクライアントです。cmd/gistmigrate から使われます。
package gist

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v59/github"
	"golang.org/x/oauth2"
)

const commentsPerPage = 100

// ResultBlock はコメントから抽出した結果ブロックです。
type ResultBlock struct {
	Author string
	Body   string
}

// Service はgistコメントの取得と結果ブロックの抽出を行います。
type Service struct {
	client *github.Client
}

// NewService は新しいgistサービスを作成します。token が空の場合は未認証で
// アクセスします（レート制限が厳しくなります）。
func NewService(ctx context.Context, token string) *Service {
	var httpClient *http.Client
	if token != "" {
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		))
	} else {
		log.Println("警告: GitHubトークンが提供されていません。レート制限に引っかかる可能性があります。")
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Service{client: github.NewClient(httpClient)}
}

// FetchResultBlocks はgistの全コメントを取得し、結果ブロックを抽出して返します。
func (s *Service) FetchResultBlocks(ctx context.Context, gistID string) ([]ResultBlock, error) {
	log.Printf("GistService: gist '%s' のコメント取得を開始します", gistID)

	var blocks []ResultBlock
	opts := &github.ListOptions{PerPage: commentsPerPage}
	for {
		comments, resp, err := s.client.Gists.ListComments(ctx, gistID, opts)
		if err != nil {
			return nil, fmt.Errorf("gistコメントの取得に失敗しました: %w", err)
		}
		for _, comment := range comments {
			author := ""
			if comment.User != nil {
				author = comment.User.GetLogin()
			}
			for _, body := range extractBlocks(comment.GetBody()) {
				blocks = append(blocks, ResultBlock{Author: author, Body: body})
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	log.Printf("GistService: %d件の結果ブロックを抽出しました", len(blocks))
	return blocks, nil
}

// extractBlocks はコメント本文から結果ブロックを抽出します。
// "CPU" で始まるヘッダー行から、空行または本文末尾までを1ブロックとします。
func extractBlocks(body string) []string {
	lines := strings.Split(body, "\n")
	var blocks []string
	for i := 0; i < len(lines); i++ {
		if !strings.HasPrefix(strings.TrimSpace(lines[i]), "CPU") {
			continue
		}
		end := i + 1
		for end < len(lines) && strings.TrimSpace(lines[end]) != "" {
			end++
		}
		blocks = append(blocks, strings.Join(lines[i:end], "\n"))
		i = end
	}
	return blocks
}
