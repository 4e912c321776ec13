package main

import (
	"errors"
	"fmt"
	"io/fs"

	ncmdump "github.com/devgianlu/go-ncmdump"
	"github.com/devgianlu/go-ncmdump/ncm"
)

// serveRequests is the application loop behind the api server: handlers
// never touch the app directly, every request goes through the channel.
func (app *App) serveRequests() {
	for req := range app.server.Receive() {
		data, err := app.handleApiRequest(req)
		req.Reply(data, err)
	}
}

func (app *App) handleApiRequest(req ApiRequest) (any, error) {
	switch req.Type {
	case ApiRequestTypeStatus:
		return &ApiResponseStatus{
			Version:     ncmdump.VersionNumberString(),
			Workers:     app.cfg.Workers,
			Decoded:     app.decoded.Load(),
			Failed:      app.failed.Load(),
			WatchedDirs: app.watched,
		}, nil
	case ApiRequestTypeDump:
		data := req.Data.(ApiRequestDataDump)
		res := ncm.Dump(app.log, data.Body)
		app.emitResult("", ConvertResult{Extension: res.Extension, Err: dumpErr(res)})

		if res.Ok() && data.Raw {
			return &ApiResponseDumpRaw{
				Data:      res.Data,
				Extension: res.Extension,
				Mime:      extensionMime(res.Extension),
			}, nil
		}

		return &ApiResponseDump{
			Result:    res.Result,
			Extension: res.Extension,
			Metadata:  res.Metadata,
			Data:      res.Data,
		}, nil
	case ApiRequestTypeDumpFile:
		data := req.Data.(ApiRequestDataDumpFile)

		outputDir := app.cfg.OutputDir
		if len(data.OutputDir) > 0 {
			outputDir = data.OutputDir
		}

		res := app.convertFileTo(data.Path, outputDir)
		app.emitResult(data.Path, res)

		if res.Err != nil {
			if errors.Is(res.Err, fs.ErrNotExist) {
				return nil, ErrNotFound
			}

			return &ApiResponseDumpFile{Result: res.Err.Error()}, nil
		}

		return &ApiResponseDumpFile{Result: "ok", Output: res.Output, Extension: res.Extension}, nil
	default:
		return nil, fmt.Errorf("unknown request type: %s", req.Type)
	}
}

func dumpErr(res *ncm.DumpResult) error {
	if res.Ok() {
		return nil
	}

	return errors.New(res.Result)
}

func extensionMime(ext string) string {
	if ext == ncmdump.AudioFormatFLAC.Extension() {
		return ncmdump.AudioFormatFLAC.Mime()
	}

	return ncmdump.AudioFormatMP3.Mime()
}
