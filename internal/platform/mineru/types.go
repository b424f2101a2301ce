package mineru

import "encoding/json"

// envelope is the common response wrapper: {"code":0,"msg":"ok","data":{...}}.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type createTaskRequest struct {
	URL          string `json:"url"`
	ModelVersion string `json:"model_version"`
}

type createTaskData struct {
	TaskID string `json:"task_id"`
}

type batchFile struct {
	Name   string `json:"name"`
	DataID string `json:"data_id"`
}

type batchUploadRequest struct {
	Files        []batchFile `json:"files"`
	ModelVersion string      `json:"model_version"`
}

type batchUploadData struct {
	BatchID  string   `json:"batch_id"`
	FileURLs []string `json:"file_urls"`
}

type extractProgress struct {
	ExtractedPages int    `json:"extracted_pages"`
	TotalPages     int    `json:"total_pages"`
	StartTime      string `json:"start_time"`
}

// extractResult describes one job, either from the single-task endpoint or
// one entry of a batch.
type extractResult struct {
	TaskID     string           `json:"task_id"`
	DataID     string           `json:"data_id"`
	FileName   string           `json:"file_name"`
	State      string           `json:"state"`
	FullZipURL string           `json:"full_zip_url"`
	ErrMsg     string           `json:"err_msg"`
	Progress   *extractProgress `json:"extract_progress"`
	// Some deployments inline the markdown instead of (or as well as) the zip.
	MDContent string `json:"md_content"`
}

type batchResultData struct {
	BatchID       string          `json:"batch_id"`
	ExtractResult []extractResult `json:"extract_result"`
}
