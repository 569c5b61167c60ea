package model

import (
	"encoding/json"
	"io"
	"os"

	"github.com/YuminosukeSato/specsel/pkg/errors"
)

// SaveResult は選択結果を JSON ファイルに保存する
//
// 使用例:
//
//	res, _ := selector.Result()
//	err := model.SaveResult(res, "cars.json")
func SaveResult(result *SelectionResult, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	defer file.Close()

	return WriteResult(result, file)
}

// LoadResult はファイルから選択結果を読み込む
func LoadResult(filename string) (*SelectionResult, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}
	defer file.Close()

	return ReadResult(file)
}

// WriteResult は選択結果をインデント付き JSON で w に書き出す
func WriteResult(result *SelectionResult, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return errors.Wrap(err, "failed to encode selection result")
	}
	return nil
}

// ReadResult は r から選択結果を読み込み、構造を検証する
func ReadResult(r io.Reader) (*SelectionResult, error) {
	var result SelectionResult
	if err := json.NewDecoder(r).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to decode selection result")
	}
	if err := result.Validate(len(result.Support)); err != nil {
		return nil, err
	}
	return &result, nil
}
