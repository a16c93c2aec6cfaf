package echo

const VersionStr = "0.1.0"
