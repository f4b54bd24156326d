// Package view はホーム画面のHTMLレンダリングと静的ファイルの配信を提供する。
package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"

	"github.com/hitoshi/ghlogin/internal/auth"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

// HomeUser はログイン中ユーザーの表示内容。
type HomeUser struct {
	Name    string
	Profile *auth.Profile
}

// HomePage はホーム画面のテンプレートに渡すデータ。
// Userがnilの場合は未ログインの画面を描画する。
type HomePage struct {
	User *HomeUser
}

// Renderer はテンプレートを事前にパースして保持する。
type Renderer struct {
	index *template.Template
}

// NewRenderer は埋め込みテンプレートをパースしてRendererを生成する。
func NewRenderer() (*Renderer, error) {
	index, err := template.ParseFS(templatesFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{index: index}, nil
}

// RenderHome はホーム画面を書き込む。
func (r *Renderer) RenderHome(w io.Writer, page HomePage) error {
	if err := r.index.Execute(w, page); err != nil {
		return fmt.Errorf("failed to render home: %w", err)
	}
	return nil
}

// StaticHandler は埋め込み静的ファイルを配信するハンドラーを返す。
// /static/ プレフィックスを取り除いてから渡すこと。
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// 埋め込みパスはビルド時に確定しているため到達しない
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
