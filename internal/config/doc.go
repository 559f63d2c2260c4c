// Package config provides configuration parsing for the pulse engine.
//
// The configuration is stored in pulse.yaml (or pulse.yml / pulse.json)
// next to the program. This package handles loading, saving and
// validating it. Every field is optional; missing fields take the
// defaults returned by New.
//
// # Configuration File Structure
//
//	frameRate: 60
//	maxFlushPasses: 100
//	debug: false
//	logLevel: info
//	spring:
//	  stiffness: 0.15
//	  damping: 0.8
//	  precision: 0.01
//	transition:
//	  duration: 300ms
//	inspector:
//	  enabled: true
//	  addr: ":7070"
//	  historySize: 512
//	metrics:
//	  namespace: pulse
//	capture:
//	  dir: captures
//	  s3Bucket: my-bucket
//	  s3Prefix: pulse/
//	  s3Region: eu-west-1
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Frame rate:", cfg.FrameRate)
package config
