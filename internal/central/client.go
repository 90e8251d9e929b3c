// 包 central：调查数据服务（ODK Central）客户端，REST 与 OData 两类接口
package central

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"survey-map/internal/logger"
	"survey-map/internal/metrics"
	"survey-map/internal/submission"
)

// 错误响应体读取上限
const maxErrorBody = 64 << 10

// 文档注释：调查数据服务客户端
// 约束：每次调用由调用方传入 bearer 凭据，客户端自身不持有凭据；凭据不写入日志。
type Client struct {
	baseURL string
	http    *http.Client
	// 统计各表单提交数时的并发上限
	fanout int
}

// New：client 为空时使用 15s 超时的默认客户端
func New(baseURL string, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: client, fanout: 4}
}

func (c *Client) BaseURL() string { return c.baseURL }

func topParams(top int) url.Values {
	q := url.Values{}
	if top > 0 {
		q.Set("$top", strconv.Itoa(top))
	}
	return q
}

// ListProjects：GET /v1/projects
func (c *Client) ListProjects(ctx context.Context, token string, top int) ([]Project, error) {
	var out []Project
	if err := c.get(ctx, "projects", token, "/v1/projects", topParams(top), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Project{}
	}
	return out, nil
}

// ListForms：GET /v1/projects/{p}/forms
func (c *Client) ListForms(ctx context.Context, token string, projectID int, top int) ([]Form, error) {
	var out []Form
	p := fmt.Sprintf("/v1/projects/%d/forms", projectID)
	if err := c.get(ctx, "forms", token, p, topParams(top), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListFields：GET /v1/projects/{p}/forms/{f}/fields
func (c *Client) ListFields(ctx context.Context, token string, projectID int, formID string) ([]submission.FieldSchemaEntry, error) {
	var out []submission.FieldSchemaEntry
	p := fmt.Sprintf("/v1/projects/%d/forms/%s/fields", projectID, url.PathEscape(formID))
	q := url.Values{}
	q.Set("$select", "*")
	if err := c.get(ctx, "fields", token, p, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// 文档注释：OData 提交列表
// 背景：GET /v1/projects/{p}/forms/{f}.svc/Submissions，响应为 {"value": [...]}；记录保留完整字段树。
// 约束：Select 为空时请求全部字段（$select=*）；Filter 原样透传给远端。
func (c *Client) ListSubmissions(ctx context.Context, token string, projectID int, formID string, qry Query) ([]submission.Record, error) {
	q := topParams(qry.Top)
	if len(qry.Select) > 0 {
		q.Set("$select", strings.Join(qry.Select, ","))
	} else {
		q.Set("$select", "*")
	}
	if qry.Filter != "" {
		q.Set("$filter", qry.Filter)
	}
	var out struct {
		Value []submission.Record `json:"value"`
	}
	p := fmt.Sprintf("/v1/projects/%d/forms/%s.svc/Submissions", projectID, url.PathEscape(formID))
	if err := c.get(ctx, "submissions", token, p, q, &out); err != nil {
		return nil, err
	}
	if out.Value == nil {
		out.Value = []submission.Record{}
	}
	return out.Value, nil
}

// ListSubmissionStates：REST 提交列表（instanceId / reviewState / createdAt），用于统计
func (c *Client) ListSubmissionStates(ctx context.Context, token string, projectID int, formID string, top int) ([]submission.Record, error) {
	var out []submission.Record
	p := fmt.Sprintf("/v1/projects/%d/forms/%s/submissions", projectID, url.PathEscape(formID))
	if err := c.get(ctx, "submission_states", token, p, topParams(top), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []submission.Record{}
	}
	return out, nil
}

// 文档注释：项目下的数据集列表及各自统计
// 背景：表单列表之外，每个表单各发起一次提交列表请求并聚合审核状态。
// 约束：单个表单统计失败不影响其它表单，该数据集统计保持为 0；仅表单列表本身失败时返回错误。
func (c *Client) ListDatasets(ctx context.Context, token string, projectID int, top int) ([]Dataset, error) {
	forms, err := c.ListForms(ctx, token, projectID, top)
	if err != nil {
		return nil, err
	}
	out := make([]Dataset, len(forms))
	var g errgroup.Group
	g.SetLimit(c.fanout)
	for i, f := range forms {
		ds := Dataset{DatasetID: f.XMLFormID, Name: f.Name, State: f.State}
		if ds.Name == "" {
			ds.Name = f.XMLFormID
		}
		if ds.State == "" {
			ds.State = "open"
		}
		out[i] = ds
		g.Go(func() error {
			recs, err := c.ListSubmissionStates(ctx, token, projectID, f.XMLFormID, 0)
			if err != nil {
				logger.L().Warn("dataset_counts_error", "project", projectID, "form", f.XMLFormID, "err", err)
				return nil
			}
			cnt := submission.Aggregate(recs, f.XMLFormID)
			out[i].Total = cnt.Total
			out[i].Edited = cnt.Edited
			out[i].Rejected = cnt.Rejected
			out[i].Approved = cnt.Approved
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

// CurrentUser：GET /v1/users/current
func (c *Client) CurrentUser(ctx context.Context, token string) (User, error) {
	var u User
	err := c.get(ctx, "current_user", token, "/v1/users/current", nil, &u)
	return u, err
}

// CreateSession：POST /v1/sessions，转发登录凭据，返回远端签发的会话
func (c *Client) CreateSession(ctx context.Context, email, password string) (Session, error) {
	var s Session
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return s, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/sessions", bytes.NewReader(body))
	if err != nil {
		return s, err
	}
	req.Header.Set("Content-Type", "application/json")
	err = c.do(req, "session", &s)
	return s, err
}

func (c *Client) get(ctx context.Context, op, token, path string, q url.Values, out any) error {
	if token == "" {
		metrics.CentralFailTotal.WithLabelValues(op, "auth").Inc()
		return ErrNoToken
	}
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return c.do(req, op, out)
}

// 文档注释：执行请求并解码响应
// 约束：401 归类为鉴权失败；其它非 2xx 携带远端状态码与消息；传输与解码失败包装为 NetworkError。
func (c *Client) do(req *http.Request, op string, out any) error {
	req.Header.Set("Accept", "application/json")
	t0 := time.Now()
	metrics.CentralRequestsTotal.WithLabelValues(op).Inc()
	logger.L().Debug("central_req", "op", op, "method", req.Method, "path", req.URL.Path)
	resp, err := c.http.Do(req)
	if err != nil {
		logger.L().Error("central_http_error", "op", op, "err", err)
		metrics.CentralFailTotal.WithLabelValues(op, "network").Inc()
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	dur := time.Since(t0).Milliseconds()
	metrics.CentralDurationMs.WithLabelValues(op).Observe(float64(dur))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Op: op, Status: resp.StatusCode, Message: remoteMessage(resp)}
		kind := "upstream"
		if resp.StatusCode == http.StatusUnauthorized {
			kind = "auth"
		}
		metrics.CentralFailTotal.WithLabelValues(op, kind).Inc()
		logger.L().Warn("central_status_error", "op", op, "status", se.Status, "message", se.Message, "duration_ms", dur)
		return se
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			logger.L().Error("central_decode_error", "op", op, "err", err)
			metrics.CentralFailTotal.WithLabelValues(op, "decode").Inc()
			return &NetworkError{Op: op, Err: err}
		}
	}
	logger.L().Debug("central_resp", "op", op, "status", resp.StatusCode, "duration_ms", dur)
	return nil
}

// remoteMessage：优先读取远端 JSON 错误体中的 message 字段
func remoteMessage(resp *http.Response) string {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var m struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(b, &m) == nil && m.Message != "" {
		return m.Message
	}
	if s := strings.TrimSpace(string(b)); s != "" && len(s) < 512 {
		return s
	}
	return http.StatusText(resp.StatusCode)
}
